package cli

import "errors"

var errEmptyName = errors.New("experiment name cannot be empty")
