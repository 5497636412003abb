package orm

import "context"

// Method is a caller-supplied function attached to every instance of a
// model, invoked through Instance.Call. The instance handle is always the
// explicit first parameter.
type Method func(ctx context.Context, inst *Instance, args ...any) (any, error)

// ValidatorFunc checks one property value against the instance it belongs
// to. Returning a non-nil error rejects the save; the first failing
// validator wins and no driver write happens.
type ValidatorFunc func(value any, inst *Instance) error

// HookFunc is a lifecycle callback. Returning an error aborts the operation
// it guards.
type HookFunc func(ctx context.Context, inst *Instance) error

// Hooks are the lifecycle callbacks run around persistence operations.
//
// Save pipeline: BeforeSave, BeforeCreate (new instances only), validators,
// driver write, AfterSave with the outcome. AfterLoad fires once per
// instance right after cache reconciliation on every load path. Remove runs
// BeforeRemove and then deletes through the driver.
type Hooks struct {
	BeforeSave   HookFunc
	BeforeCreate HookFunc
	AfterSave    func(ctx context.Context, inst *Instance, success bool)
	AfterLoad    func(ctx context.Context, inst *Instance)
	BeforeRemove HookFunc
}
