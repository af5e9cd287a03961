// SPDX-License-Identifier: MPL-2.0

// Package fetch materializes manifest assets on disk. HTTP downloads go
// through provider-specific credential strategies, object store assets
// come from an S3-compatible bucket, and version control assets are
// cloned or pulled in place. Fetching is idempotent: an asset whose
// target file already exists with non-zero size is skipped without any
// network traffic.
package fetch
