package storage

import "errors"

var ErrUnsupportedPreview = errors.New("preview must be a jpeg, png, gif or webp image")
