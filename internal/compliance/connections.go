package compliance

import (
	"context"
	"fmt"

	"auditflow/internal/model"
)

// Decision is a response to a connection request or a review verdict.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionReject  Decision = "reject"
	DecisionApprove Decision = "approve"
)

// ConnectionView is a connection seen from one of its parties.
type ConnectionView struct {
	Connection  *model.Connection
	Counterpart *model.Profile
	IsInitiator bool // the viewing user sent the request
}

// RequestConnection asks to connect initiatorID with the profile owning
// targetCode. The new connection is pending, and its buyer and supplier
// sides follow the profiles' roles, not who asked.
func (s *Service) RequestConnection(ctx context.Context, initiatorID, targetCode string) (*model.Connection, error) {
	initiator, err := s.GetProfile(ctx, initiatorID)
	if err != nil {
		return nil, err
	}
	target, err := s.FindProfileByCode(ctx, targetCode)
	if err != nil {
		return nil, err
	}
	if initiator.ID == target.ID {
		return nil, ErrSelfConnection
	}
	if initiator.Role == target.Role {
		return nil, ErrSameRole
	}

	buyerID, supplierID := initiator.ID, target.ID
	if initiator.Role == model.RoleSupplier {
		buyerID, supplierID = target.ID, initiator.ID
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()

	existing, err := s.repo.FindConnectionByPair(ctx, buyerID, supplierID)
	if err != nil {
		return nil, fmt.Errorf("checking existing connection: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateConnection
	}

	conn := &model.Connection{
		ID:                s.idgen.New(),
		BuyerProfileID:    buyerID,
		SupplierProfileID: supplierID,
		InitiatorID:       initiator.ID,
		Status:            model.ConnectionPending,
		CreatedAt:         s.clock.Now(),
	}
	if err := s.repo.CreateConnection(ctx, conn); err != nil {
		return nil, fmt.Errorf("creating connection: %w", err)
	}

	s.logger.Info("connection requested", "id", conn.ID, "buyer", buyerID, "supplier", supplierID, "initiator", initiator.ID)
	return conn, nil
}

// GetConnection returns a connection by ID.
func (s *Service) GetConnection(ctx context.Context, connectionID string) (*model.Connection, error) {
	conn, err := s.repo.FindConnectionByID(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("finding connection: %w", err)
	}
	if conn == nil {
		return nil, notFound("connection", connectionID)
	}
	return conn, nil
}

// RespondToConnection accepts (pending to active) or rejects (deletes) a
// connection. Callers must check the responder is a party to it.
// The returned connection is nil after a rejection.
func (s *Service) RespondToConnection(ctx context.Context, connectionID string, decision Decision) (*model.Connection, error) {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	conn, err := s.GetConnection(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	switch decision {
	case DecisionAccept:
		if conn.Status == model.ConnectionActive {
			return conn, nil
		}
		if err := s.repo.UpdateConnectionStatus(ctx, conn.ID, model.ConnectionActive); err != nil {
			return nil, fmt.Errorf("activating connection: %w", err)
		}
		conn.Status = model.ConnectionActive
		s.logger.Info("connection accepted", "id", conn.ID)
		return conn, nil
	case DecisionReject:
		if err := s.repo.DeleteConnection(ctx, conn.ID); err != nil {
			return nil, fmt.Errorf("deleting connection: %w", err)
		}
		s.logger.Info("connection rejected", "id", conn.ID)
		return nil, nil
	default:
		return nil, invalid("unknown connection decision %q", decision)
	}
}

// ListConnectionsForUser returns every connection the user is part of, with
// the other party's profile.
func (s *Service) ListConnectionsForUser(ctx context.Context, userID string) ([]*ConnectionView, error) {
	conns, err := s.repo.ListConnectionsForProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}

	views := make([]*ConnectionView, 0, len(conns))
	for _, c := range conns {
		other, err := s.repo.FindProfileByID(ctx, c.CounterpartOf(userID))
		if err != nil {
			return nil, fmt.Errorf("finding counterpart: %w", err)
		}
		if other == nil {
			s.logger.Warn("connection counterpart missing", "connection", c.ID)
			continue
		}
		views = append(views, &ConnectionView{
			Connection:  c,
			Counterpart: other,
			IsInitiator: c.InitiatorID == userID,
		})
	}
	return views, nil
}

// ListActivePartners returns the profiles with role that have an active
// connection with userID.
func (s *Service) ListActivePartners(ctx context.Context, userID string, role model.Role) ([]*model.Profile, error) {
	views, err := s.ListConnectionsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	var partners []*model.Profile
	for _, v := range views {
		if v.Connection.Status == model.ConnectionActive && v.Counterpart.Role == role {
			partners = append(partners, v.Counterpart)
		}
	}
	return partners, nil
}

// activeConnection reports whether buyerID and supplierID are actively connected.
func (s *Service) activeConnection(ctx context.Context, buyerID, supplierID string) (bool, error) {
	conn, err := s.repo.FindConnectionByPair(ctx, buyerID, supplierID)
	if err != nil {
		return false, fmt.Errorf("finding connection: %w", err)
	}
	return conn != nil && conn.Status == model.ConnectionActive, nil
}
