package content

import "errors"

var ErrItemNotFound = errors.New("content item not found")
