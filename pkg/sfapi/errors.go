package sfapi

import "errors"

func isAccessDenied(err error) bool {
	return err != nil && errors.Is(err, ErrInsufficientAccess)
}

func isNotFound(err error) bool {
	return err != nil && errors.Is(err, ErrNotFound)
}
