package hal

import "errors"

var (
	ErrDeviceLost       = errors.New("hal: device lost")
	ErrAdapterNotFound  = errors.New("hal: no suitable adapter found")
	ErrPassAlreadyOpen  = errors.New("hal: encoder already has an open pass")
	ErrEncoderFinished  = errors.New("hal: command encoder already finished")
	ErrResourceReleased = errors.New("hal: resource already released")
	ErrNotMapped        = errors.New("hal: buffer is not mapped")
)
