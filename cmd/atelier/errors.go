// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"atelier-cli/internal/issue"

	"github.com/spf13/cobra"
)

// finishError converts a command failure into terminal output plus an
// ExitError for Execute. Cobra's own error printing and usage dump are
// silenced: by this point the user has already seen a styled message
// and, where one exists, the issue catalog entry.
func finishError(cmd *cobra.Command, err error) error {
	if err == nil {
		return nil
	}
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		renderServiceError(cmd.ErrOrStderr(), svcErr)
	} else {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n",
			ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	return &ExitError{Code: 1, Err: err}
}

// formatErrorForDisplay prefers the actionable rendering (operation,
// resource, suggestions) when the chain carries one.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}
