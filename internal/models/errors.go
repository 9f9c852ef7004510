package models

import "errors"

var (
	ErrConfiguration = errors.New("configuration error")
	ErrRemote        = errors.New("remote call failed")
	ErrDecode        = errors.New("invalid token response")
	ErrRender        = errors.New("page render failed")
)
