package authz

import (
	"context"
	"fmt"
)

// Action is the verb a caller wants to perform against a resource.
type Action uint8

const (
	// ActionRead grants read access to a resource.
	ActionRead Action = iota
	// ActionWrite grants write access to a resource.
	ActionWrite
	// ActionCreate grants the ability to create a resource.
	ActionCreate
	// ActionDelete grants the ability to delete a resource.
	ActionDelete
)

// String renders the action verb in lower case.
func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionWrite:
		return "write"
	case ActionCreate:
		return "create"
	case ActionDelete:
		return "delete"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

// ResourceKind classifies the object a permission applies to.
type ResourceKind uint8

const (
	// ResourceDatabase scopes a permission to a single named database.
	ResourceDatabase ResourceKind = iota
)

// String renders the resource kind in lower case.
func (k ResourceKind) String() string {
	switch k {
	case ResourceDatabase:
		return "database"
	default:
		return fmt.Sprintf("resource(%d)", uint8(k))
	}
}

// Resource identifies the object a permission applies to.
type Resource struct {
	Kind ResourceKind
	Name string
}

// String renders the resource as kind/name.
func (r Resource) String() string {
	return r.Kind.String() + "/" + r.Name
}

// Permission pairs a resource with the action requested on it.
type Permission struct {
	Resource Resource
	Action   Action
}

// String renders the permission as kind/name:action.
func (p Permission) String() string {
	return p.Resource.String() + ":" + p.Action.String()
}

// Authorizer evaluates which of the requested permissions a token holds.
//
// Implementations must be safe for concurrent use. The returned slice is the
// subset of requested permissions that were granted; an empty slice with a nil
// error means the check itself succeeded but nothing was granted.
type Authorizer interface {
	Permissions(ctx context.Context, token []byte, requested []Permission) ([]Permission, error)
}

// AllowAllAuthorizer grants every requested permission without looking at the
// token. It is the implementation used when authorization is disabled.
type AllowAllAuthorizer struct{}

var _ Authorizer = AllowAllAuthorizer{}

// Permissions returns a copy of requested, unconditionally granted.
func (AllowAllAuthorizer) Permissions(_ context.Context, _ []byte, requested []Permission) ([]Permission, error) {
	granted := make([]Permission, len(requested))
	copy(granted, requested)
	return granted, nil
}
