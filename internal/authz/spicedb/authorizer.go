// Package spicedb implements the authorizer against a SpiceDB backend, for
// deployments that manage index permissions centrally instead of through the
// built-in ACL rules.
package spicedb

import (
	v1pb "github.com/authzed/authzed-go/proto/authzed/api/v1"
	"github.com/authzed/authzed-go/v1"

	"github.com/devpi/devpi-lockdown/internal/authz"
	"github.com/devpi/devpi-lockdown/internal/observability/logging"
)

// Authorizer implements authorization using SpiceDB
type Authorizer struct {
	client       *authzed.Client
	resourceType string
	subjectType  string
	logger       *logging.Logger
}

// Config holds SpiceDB authorizer configuration
type Config struct {
	// ResourceType is the SpiceDB object type for indexes
	ResourceType string

	// SubjectType is the SpiceDB object type for users
	SubjectType string
}

// New creates a new SpiceDB authorizer
func New(cfg Config, client *authzed.Client, logger *logging.Logger) *Authorizer {
	return &Authorizer{
		client:       client,
		resourceType: cfg.ResourceType,
		subjectType:  cfg.SubjectType,
		logger:       logger.WithModule("authz.spicedb"),
	}
}

// objectID maps a resource to its SpiceDB object ID. Index resources are
// "user/index"; the root resource is "root".
func objectID(r authz.Resource) string {
	if r.IsRoot() {
		return "root"
	}
	return r.User + "/" + r.Index
}

// Authorize checks the permission with SpiceDB. Backend errors yield the
// Error decision; the verdict engine treats anything but Allow as a deny.
func (a *Authorizer) Authorize(req *authz.Request) *authz.Response {
	if req.Identity == nil {
		return &authz.Response{Decision: authz.Unauthorized, Reason: "no identity provided"}
	}

	checkReq := &v1pb.CheckPermissionRequest{
		Resource: &v1pb.ObjectReference{
			ObjectType: a.resourceType,
			ObjectId:   objectID(req.Resource),
		},
		Permission: req.Permission,
		Subject: &v1pb.SubjectReference{
			Object: &v1pb.ObjectReference{
				ObjectType: a.subjectType,
				ObjectId:   req.Identity.Username,
			},
		},
	}

	resp, err := a.client.CheckPermission(req.Context, checkReq)
	if err != nil {
		a.logger.Error("error checking permission with SpiceDB",
			logging.Err(err),
			"subject", req.Identity.Username,
			"resource", objectID(req.Resource),
			"permission", req.Permission,
		)
		return &authz.Response{
			Decision: authz.Error,
			Reason:   "error checking permission",
			Error:    err,
		}
	}

	if resp.GetPermissionship() == v1pb.CheckPermissionResponse_PERMISSIONSHIP_HAS_PERMISSION {
		return &authz.Response{Decision: authz.Allow, Reason: "permission granted"}
	}
	return &authz.Response{Decision: authz.Deny, Reason: "permission denied"}
}

var _ authz.Authorizer = (*Authorizer)(nil)
