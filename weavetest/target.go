package weavetest

import "github.com/iov-one/issuance"

// Target is a configurable allocation target mock. The zero value is a
// target that supports allocation and accepts all notifications.
type Target struct {
	// Addr is the identity of this target. Use NewTarget to get one
	// assigned automatically.
	Addr issuance.Address

	// Unsupported, when true, makes the capability probe fail.
	Unsupported bool

	// ChangeErr is returned from every change notification.
	ChangeErr error

	// ChangeHook, if set, is invoked during a change notification with
	// the store the notification runs under. It can be used to test
	// reentrant behaviour.
	ChangeHook func(db issuance.KVStore) error

	// ChangeCallCount counts delivered change notifications.
	ChangeCallCount int
}

// NewTarget returns a target mock with a unique address.
func NewTarget() *Target {
	return &Target{Addr: NewAddress()}
}

func (m *Target) Address() issuance.Address {
	return m.Addr
}

func (m *Target) SupportsAllocation() bool {
	return !m.Unsupported
}

func (m *Target) OnAllocationChange(db issuance.KVStore) error {
	m.ChangeCallCount++
	if m.ChangeHook != nil {
		if err := m.ChangeHook(db); err != nil {
			return err
		}
	}
	return m.ChangeErr
}
