package assessment

import "errors"

var (
	ErrCustomerRequired = errors.New("customer id is required")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrCustomerInactive = errors.New("customer is not active")
)
