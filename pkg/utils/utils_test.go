package utils

import (
	"bytes"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))

	return req.MultipartForm.File["image"][0]
}

func pngBytes(t *testing.T) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func TestNewULIDFromTimestamp(t *testing.T) {
	u := New()
	now := time.Now()

	id, err := u.NewULIDFromTimestamp(now)
	require.NoError(t, err)

	parsed, err := ulid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(now), parsed.Time())
}

func TestValidateImageFile(t *testing.T) {
	u := New()

	assert.NoError(t, u.ValidateImageFile(fileHeader(t, "street.JPG", []byte("x"))))
	assert.NoError(t, u.ValidateImageFile(fileHeader(t, "street.png", []byte("x"))))
	assert.NoError(t, u.ValidateImageFile(fileHeader(t, "street.jpeg", []byte("x"))))
	assert.ErrorIs(t, u.ValidateImageFile(fileHeader(t, "street.gif", []byte("x"))), ErrUnsupportedImage)
	assert.ErrorIs(t, u.ValidateImageFile(nil), ErrNoFile)

	big := fileHeader(t, "big.jpg", []byte("x"))
	big.Size = 11 * 1024 * 1024
	assert.ErrorIs(t, u.ValidateImageFile(big), ErrFileTooLarge)
}

func TestReadFileAndSniff(t *testing.T) {
	u := New()
	content := pngBytes(t)

	data, err := u.ReadFile(fileHeader(t, "img.png", content))
	require.NoError(t, err)
	assert.Equal(t, content, data)

	contentType, err := u.SniffImageType(data)
	require.NoError(t, err)
	assert.Equal(t, "image/png", contentType)

	_, err = u.SniffImageType([]byte(strings.Repeat("GIF89a", 4)))
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestFingerprint(t *testing.T) {
	u := New()
	a := u.Fingerprint([]byte("image-a"))

	assert.Len(t, a, 64)
	assert.Equal(t, a, u.Fingerprint([]byte("image-a")))
	assert.NotEqual(t, a, u.Fingerprint([]byte("image-b")))
}
