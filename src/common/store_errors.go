package common

import (
	"errors"
	"fmt"
)

// StoreErrType enumerates the failures a record store reports.
type StoreErrType uint32

const (
	// KeyNotFound means the requested record does not exist.
	KeyNotFound StoreErrType = iota
	// KeyAlreadyExists means an immutable record would be overwritten.
	KeyAlreadyExists
	// SchemaMismatch means the on-disk layout is newer than this binary.
	SchemaMismatch
)

var storeErrMessages = map[StoreErrType]string{
	KeyNotFound:      "not found",
	KeyAlreadyExists: "already exists",
	SchemaMismatch:   "unsupported schema version",
}

// StoreErr reports a store failure on one record, identified by the kind of
// record and its key.
type StoreErr struct {
	dataType string
	errType  StoreErrType
	key      string
}

// NewStoreErr builds a StoreErr for the record key of type dataType.
func NewStoreErr(dataType string, errType StoreErrType, key string) StoreErr {
	return StoreErr{
		dataType: dataType,
		errType:  errType,
		key:      key,
	}
}

func (e StoreErr) Error() string {
	return fmt.Sprintf("%s %s: %s", e.dataType, e.key, storeErrMessages[e.errType])
}

// IsStore reports whether err, or an error it wraps, is a StoreErr of kind t.
func IsStore(err error, t StoreErrType) bool {
	var storeErr StoreErr
	return errors.As(err, &storeErr) && storeErr.errType == t
}
