// Package fibronet holds shared file plumbing for the fibronet tools — the
// input artifacts (count matrices, embeddings, deviation scores) live either
// on disk or at fixed URLs, in a variety of compression formats.
package fibronet

import (
	"io"
	"net/http"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/carbocation/pfx"
)

// OpenFileOrURL reads the full contents of a local path or an http(s) URL.
func OpenFileOrURL(input string) ([]byte, error) {
	var f io.ReadCloser

	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		resp, err := http.Get(input)
		if err != nil {
			return nil, pfx.Err(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, pfx.Err(&httpStatusError{url: input, status: resp.Status})
		}

		f = resp.Body
	} else {
		file, err := os.Open(ExpandHome(input))
		if err != nil {
			return nil, pfx.Err(err)
		}
		defer file.Close()

		f = file
	}

	out, err := io.ReadAll(f)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return out, nil
}

type httpStatusError struct {
	url    string
	status string
}

func (e *httpStatusError) Error() string {
	return "fetching " + e.url + ": " + e.status
}

// ExpandHome expands ~ to its proper path, where appropriate.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		usr, err := user.Current()
		if err != nil {
			return path
		}
		path = filepath.Join(usr.HomeDir, (path)[2:])
	}

	return path
}
