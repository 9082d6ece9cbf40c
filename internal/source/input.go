// Package source describes and fetches the raw datasets handed to the
// enrichment pipeline, either uploaded file contents or a URL.
package source

import (
	"encoding/base64"
	"fmt"
	"strings"

	"grant-insights/internal/common/errors"
)

// Input is one dataset to enrich. Exactly one of Contents and URL is set.
type Input struct {
	Filename    string
	Contents    []byte
	URL         string
	Version     string
	ContentType string
	// Registry is an optional registry entry describing a published file
	Registry map[string]any
}

// FromFile describes uploaded file contents
func FromFile(filename string, contents []byte) Input {
	return Input{Filename: filename, Contents: contents}
}

// FromURL describes a dataset published at url
func FromURL(url string) Input {
	return Input{URL: url}
}

// Name is the declared filename, or the URL for remote datasets
func (in Input) Name() string {
	if in.URL != "" {
		return in.URL
	}
	return in.Filename
}

// IsURL reports whether the dataset must be downloaded
func (in Input) IsURL() bool {
	return in.URL != ""
}

// Validate checks the input names a single source
func (in Input) Validate() error {
	switch {
	case in.URL != "" && len(in.Contents) > 0:
		return errors.ValidationError("give either file contents or a URL, not both")
	case in.URL != "":
		if !strings.HasPrefix(in.URL, "http://") && !strings.HasPrefix(in.URL, "https://") {
			return errors.ValidationError(fmt.Sprintf("unsupported URL %q", in.URL))
		}
		return nil
	case len(in.Contents) == 0:
		return errors.InputError("No file contents were provided.")
	case in.Filename == "":
		return errors.InputError("A filename is needed to work out the file type.")
	}
	return nil
}

// DecodeDataURL decodes browser upload contents of the form
// "data:<type>;base64,<payload>". Input without a comma is taken as bare base64.
func DecodeDataURL(s string) (contents []byte, contentType string, err error) {
	payload := s
	if head, rest, ok := strings.Cut(s, ","); ok {
		payload = rest
		head = strings.TrimPrefix(head, "data:")
		contentType = strings.TrimSuffix(head, ";base64")
	}
	contents, err = base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, "", errors.InputError(fmt.Sprintf("Could not decode the uploaded file: %v", err))
	}
	return contents, contentType, nil
}
