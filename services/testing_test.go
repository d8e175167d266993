package services

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/textproto"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

// fileHeaders builds real multipart file headers for the given file names.
func fileHeaders(t *testing.T, names ...string) []*multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, name := range names {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+name+`"; filename="`+name+`"`)
		h.Set("Content-Type", "image/png")
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte("png-bytes-" + name))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	var files []*multipart.FileHeader
	for _, name := range names {
		files = append(files, form.File[name]...)
	}
	return files
}

func strPtr(s string) *string {
	return &s
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
