package identity

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/tillbook/tillbook/internal/shared"
)

// Service wraps operator account business rules.
type Service struct {
	repo  RepositoryPort
	audit shared.AuditPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, audit shared.AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Login validates username/secret credentials and returns the operator.
func (s *Service) Login(ctx context.Context, username, secret string) (*Operator, error) {
	if strings.TrimSpace(username) == "" {
		return nil, shared.Missing("username")
	}
	if secret == "" {
		return nil, shared.Missing("secret")
	}
	op, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if shared.KindOf(err) == shared.KindNotFound {
			return nil, shared.BadCredentials()
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.SecretHash), []byte(secret)); err != nil {
		return nil, shared.BadCredentials()
	}
	return op, nil
}

// Register creates a new operator after validating the input.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*Operator, error) {
	if strings.TrimSpace(input.Username) == "" {
		return nil, shared.Missing("username")
	}
	if input.Secret == "" || input.Confirm == "" {
		return nil, shared.Missing("secret")
	}
	if input.Secret != input.Confirm {
		return nil, shared.Mismatch("secret confirmation does not match")
	}
	if len(input.Secret) < MinSecretLength {
		return nil, shared.TooShort(MinSecretLength)
	}
	role := input.Role
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return nil, shared.Invalid("unknown role " + string(role))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, shared.StoreError(err)
	}

	id, err := s.repo.Create(ctx, input.Username, string(hash), role)
	if err != nil {
		return nil, err
	}

	op := &Operator{ID: id, Username: input.Username, Role: role}
	s.recordAudit(ctx, 0, "identity:register", id, map[string]any{"username": input.Username, "role": role})
	return op, nil
}

// DeleteOperator removes an operator account. It refuses self-deletion and
// deletion of the last remaining admin.
func (s *Service) DeleteOperator(ctx context.Context, actor shared.Actor, id int64) error {
	if id == actor.ID {
		return shared.SelfDelete()
	}
	target, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if target.Role == RoleAdmin {
		admins, err := s.repo.CountAdmins(ctx)
		if err != nil {
			return err
		}
		if admins <= 1 {
			return shared.LastAdmin()
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actor.ID, "identity:delete", id, map[string]any{"username": target.Username})
	return nil
}

// ChangeSecret verifies the current secret and stores the new one.
func (s *Service) ChangeSecret(ctx context.Context, input ChangeSecretInput) error {
	if input.Current == "" || input.Next == "" || input.Confirm == "" {
		return shared.Missing("secret")
	}
	if input.Next != input.Confirm {
		return shared.Mismatch("secret confirmation does not match")
	}
	if len(input.Next) < MinSecretLength {
		return shared.TooShort(MinSecretLength)
	}

	op, err := s.repo.FindByID(ctx, input.OperatorID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.SecretHash), []byte(input.Current)); err != nil {
		return shared.BadCredentials()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Next), bcrypt.DefaultCost)
	if err != nil {
		return shared.StoreError(err)
	}
	return s.repo.UpdateSecret(ctx, input.OperatorID, string(hash))
}

// SetRole changes an operator's role. Demoting the last admin is refused.
func (s *Service) SetRole(ctx context.Context, actor shared.Actor, id int64, role Role) error {
	if !role.Valid() {
		return shared.Invalid("unknown role " + string(role))
	}
	target, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if target.Role == RoleAdmin && role != RoleAdmin {
		admins, err := s.repo.CountAdmins(ctx)
		if err != nil {
			return err
		}
		if admins <= 1 {
			return shared.LastAdmin()
		}
	}
	if err := s.repo.UpdateRole(ctx, id, role); err != nil {
		return err
	}
	s.recordAudit(ctx, actor.ID, "identity:set_role", id, map[string]any{"role": role})
	return nil
}

// GetOperator fetches a single operator.
func (s *Service) GetOperator(ctx context.Context, id int64) (*Operator, error) {
	return s.repo.FindByID(ctx, id)
}

// ListOperators returns all operators.
func (s *Service) ListOperators(ctx context.Context) ([]Operator, error) {
	return s.repo.List(ctx)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "operator",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
}
