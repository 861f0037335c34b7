package server

import (
	_ "embed"
	"fmt"
	"os"
)

//go:embed html/head.html
var defaultHead string

//go:embed html/tail.html
var defaultTail string

const liveReloadScript = `<script>
(function () {
  var scheme = location.protocol === "https:" ? "wss://" : "ws://";
  var socket = new WebSocket(scheme + location.host + "` + LiveReloadPath + `");
  socket.onmessage = function (event) {
    var msg = JSON.parse(event.data);
    if (msg.type === "reload") {
      location.reload();
    }
  };
})();
</script>
`

// Templates holds the fragments wrapped around every rendered document.
// Their content is opaque: wrapping is plain concatenation.
type Templates struct {
	Head string
	Tail string
}

// DefaultTemplates returns the embedded head and tail fragments.
func DefaultTemplates() Templates {
	return Templates{Head: defaultHead, Tail: defaultTail}
}

// LoadTemplates reads the fragments once, falling back to the embedded
// default for any path left empty.
func LoadTemplates(headPath, tailPath string) (Templates, error) {
	t := DefaultTemplates()

	if headPath != "" {
		data, err := os.ReadFile(headPath)
		if err != nil {
			return Templates{}, fmt.Errorf("reading head template: %w", err)
		}
		t.Head = string(data)
	}

	if tailPath != "" {
		data, err := os.ReadFile(tailPath)
		if err != nil {
			return Templates{}, fmt.Errorf("reading tail template: %w", err)
		}
		t.Tail = string(data)
	}

	return t, nil
}

// WithLiveReload returns a copy whose tail is followed by the reload client.
func (t Templates) WithLiveReload() Templates {
	t.Tail += liveReloadScript
	return t
}

// Wrap concatenates head, body and tail.
func (t Templates) Wrap(body string) string {
	return t.Head + body + t.Tail
}
