package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"auditflow/internal/compliance"
	"auditflow/internal/model"
)

type connectionRequest struct {
	Code string `json:"code"`
}

func (s *Server) requestConnection(c echo.Context) error {
	var req connectionRequest
	if err := c.Bind(&req); err != nil {
		return errBadRequest("invalid request body")
	}
	me := caller(c)
	conn, err := s.svc.RequestConnection(c.Request().Context(), me.UserID, req.Code)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toConnection(conn, me.UserID))
}

func (s *Server) listConnections(c echo.Context) error {
	views, err := s.svc.ListConnectionsForUser(c.Request().Context(), caller(c).UserID)
	if err != nil {
		return err
	}
	out := make([]*connectionJSON, len(views))
	for i, v := range views {
		out[i] = toConnectionView(v)
	}
	return c.JSON(http.StatusOK, out)
}

// acceptConnection is only open to the party that received the request.
func (s *Server) acceptConnection(c echo.Context) error {
	ctx := c.Request().Context()
	me := caller(c)
	conn, err := s.svc.GetConnection(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if !conn.Involves(me.UserID) {
		return errForbidden("not a party to this connection")
	}
	if conn.InitiatorID == me.UserID && conn.Status == model.ConnectionPending {
		return errForbidden("the requesting party cannot accept its own request")
	}

	conn, err = s.svc.RespondToConnection(ctx, conn.ID, compliance.DecisionAccept)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toConnection(conn, me.UserID))
}

// rejectConnection lets either party decline or withdraw a connection.
func (s *Server) rejectConnection(c echo.Context) error {
	ctx := c.Request().Context()
	conn, err := s.svc.GetConnection(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if !conn.Involves(caller(c).UserID) {
		return errForbidden("not a party to this connection")
	}
	if _, err := s.svc.RespondToConnection(ctx, conn.ID, compliance.DecisionReject); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listPartners(c echo.Context) error {
	me := caller(c)
	partners, err := s.svc.ListActivePartners(c.Request().Context(), me.UserID, me.Role.Counterpart())
	if err != nil {
		return err
	}
	out := make([]*profileJSON, len(partners))
	for i, p := range partners {
		out[i] = toProfile(p)
	}
	return c.JSON(http.StatusOK, out)
}
