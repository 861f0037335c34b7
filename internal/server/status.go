package server

import (
	"net/http"

	mderrors "github.com/conneroisu/mdserve/internal/errors"
)

// rejectionStatus maps rejection kinds to HTTP status codes. NotMarkdown is
// absent: it hands the request to the static file handler instead.
var rejectionStatus = map[mderrors.Kind]int{
	mderrors.KindNotFound: http.StatusNotFound,
	mderrors.KindDecoding: http.StatusInternalServerError,
}

// statusFor returns the status for a rejection kind, 500 for anything unmapped.
func statusFor(kind mderrors.Kind) int {
	if status, ok := rejectionStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}
