// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	WorkDirNotWritableId
	ManifestNotFoundId
	ManifestParseErrorId
	RequiredAssetFailedId
	MountPermissionDeniedId
	ObjectStoreUnreachableId
	ServiceNotReadyId
	AcceleratorAbsentId
)

type MarkdownMsg string

type Issue struct {
	id    Id          // ID used to look up the issue
	mdMsg MarkdownMsg // Markdown text that will be rendered
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) Render(stylePath string) (string, error) {
	return render(string(i.mdMsg), stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Could not load the atelier configuration file.

## Configuration file locations (in order of precedence):
1. Path given via --config
2. ~/.config/atelier/atelier.env
3. ./atelier.env

## Things you can try:
- Create a starter configuration:
~~~
$ atelier config init
~~~

- Check the file is plain ` + "`key=value`" + ` lines (shell-style, one per line)
- Remove the config file to fall back to defaults

## Example configuration:
~~~
WORK_DIR=/srv/atelier
APP_DIR=/srv/atelier/ComfyUI
PORT=8188
MOUNT_ROOT=/models
~~~`,
	}

	workDirNotWritableIssue = &Issue{
		id: WorkDirNotWritableId,
		mdMsg: `
# Working directory is not usable!

The provisioning working directory does not exist and could not be created,
or is not writable.

## Things you can try:
- Check the WORK_DIR value:
~~~
$ atelier config show
~~~

- Create the directory yourself with the right ownership:
~~~
$ sudo mkdir -p /srv/atelier && sudo chown $USER /srv/atelier
~~~

- Point WORK_DIR at a directory you own`,
	}

	manifestNotFoundIssue = &Issue{
		id: ManifestNotFoundId,
		mdMsg: `
# No asset manifest found!

We searched for an asset manifest but couldn't find one.

## Search locations (in order of precedence):
1. Path given via --manifest
2. ./atelier.cue
3. The built-in default manifest (FLUX stack)

## Things you can try:
- Run with the built-in manifest (no flag needed) or write your own:
~~~cue
assets: [
	{
		name:     "flux1-dev"
		source:   "http"
		provider: "huggingface"
		locator:  "https://huggingface.co/black-forest-labs/FLUX.1-dev/resolve/main/flux1-dev.safetensors"
		dest:     "checkpoints"
		filename: "flux1-dev.safetensors"
	},
]
~~~`,
	}

	manifestParseErrorIssue = &Issue{
		id: ManifestParseErrorId,
		mdMsg: `
# Failed to parse asset manifest!

Your manifest contains syntax errors or invalid fields.

## Common issues:
- Invalid CUE syntax (missing quotes, braces, commas)
- Unknown ` + "`source`" + ` kind (valid: http, objectstore, versioncontrol)
- Unknown ` + "`provider`" + ` (valid: huggingface, civitai, none)
- Missing required fields (name, source, locator, dest)

## Things you can try:
- Check the error message above for the exact path and line
- Validate the file with the cue command-line tool
- Compare against the built-in manifest:
~~~
$ atelier fetch --print-manifest
~~~`,
	}

	requiredAssetFailedIssue = &Issue{
		id: RequiredAssetFailedId,
		mdMsg: `
# Required asset download failed!

A non-optional asset could not be fetched, so provisioning cannot continue.

## Common causes:
- Gated Hugging Face repository without a token
- Civitai model requiring an API token
- Object store endpoint or credentials misconfigured
- Network failure mid-download

## Things you can try:
- Set the provider token and retry:
~~~
$ export HF_TOKEN=hf_...        # Hugging Face
$ export CIVITAI_TOKEN=...      # Civitai
~~~

- Mark the asset ` + "`optional: true`" + ` in the manifest if you can run without it
- Re-run with --dry-run to preview exactly what will be fetched`,
	}

	mountPermissionDeniedIssue = &Issue{
		id: MountPermissionDeniedId,
		mdMsg: `
# Permission denied while binding model directories!

Provisioning cannot proceed without writable model directories.

## Common causes:
- The application directory is owned by another user
- The external model mount is read-only

## Things you can try:
- Check ownership of the app directory and the mount:
~~~
$ ls -ld /srv/atelier/ComfyUI/models /models
~~~

- Re-mount the external storage writable
- Run atelier as a user with write access (avoid root where possible)`,
	}

	objectStoreUnreachableIssue = &Issue{
		id: ObjectStoreUnreachableId,
		mdMsg: `
# Object store is unreachable!

Assets with ` + "`source: \"objectstore\"`" + ` need a reachable S3-compatible
endpoint configured before provisioning starts.

## Things you can try:
- Check the endpoint and credentials:
~~~
$ atelier config show
~~~

- Set them via environment:
~~~
$ export ATELIER_OBJECT_STORE_ENDPOINT=minio.internal:9000
$ export ATELIER_OBJECT_STORE_ACCESS_KEY=...
$ export ATELIER_OBJECT_STORE_SECRET_KEY=...
~~~

- Mark object-store assets optional if a mirror is acceptable`,
	}

	serviceNotReadyIssue = &Issue{
		id: ServiceNotReadyId,
		mdMsg: `
# Service did not become ready!

The liveness endpoint never returned success within the retry budget.

## Things you can try:
- Inspect the service log under the working directory
- Increase the retry budget:
~~~
$ atelier start --max-attempts 60 --interval 5s
~~~

- Probe the endpoint yourself:
~~~
$ curl -i http://127.0.0.1:8188/system_stats
~~~

- On first start the service may still be loading model weights; large
  checkpoints can take several minutes`,
	}

	acceleratorAbsentIssue = &Issue{
		id: AcceleratorAbsentId,
		mdMsg: `
# No accelerator detected

nvidia-smi was not found or reported no device. This is not an error:
provisioning continues and the service starts on the CPU code path, but
image generation will be very slow.

## Things you can check:
- The NVIDIA driver is installed and ` + "`nvidia-smi`" + ` runs
- Inside a container, the NVIDIA container toolkit is configured
- ` + "`CUDA_VISIBLE_DEVICES`" + ` is not masking every device`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():       configLoadFailedIssue,
		workDirNotWritableIssue.Id():     workDirNotWritableIssue,
		manifestNotFoundIssue.Id():       manifestNotFoundIssue,
		manifestParseErrorIssue.Id():     manifestParseErrorIssue,
		requiredAssetFailedIssue.Id():    requiredAssetFailedIssue,
		mountPermissionDeniedIssue.Id():  mountPermissionDeniedIssue,
		objectStoreUnreachableIssue.Id(): objectStoreUnreachableIssue,
		serviceNotReadyIssue.Id():        serviceNotReadyIssue,
		acceleratorAbsentIssue.Id():      acceleratorAbsentIssue,
	}
)

func Values() []*Issue {
	vals := maps.Values(issues)
	slices.SortFunc(vals, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return vals
}

func Get(id Id) *Issue {
	return issues[id]
}
