package gin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	tips "github.com/attentionrush/tips"
	signersevm "github.com/attentionrush/tips/signers/evm"
)

type createSessionRequest struct {
	From        string `json:"from"`
	Interactive bool   `json:"interactive"`
}

type createSessionResponse struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Universal string `json:"universal,omitempty"`
}

type visibilityRequest struct {
	Cast         tips.ContentItem `json:"cast"`
	Intersecting bool             `json:"intersecting"`
	Ratio        float64          `json:"ratio"`
}

type visibilityResponse struct {
	Fired   bool `json:"fired"`
	Pending int  `json:"pending"`
}

type selectionRequest struct {
	Cast *tips.ContentItem `json:"cast"`
}

func (a *API) getFeed(c *gin.Context) {
	if a.deps.Feed == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "feed not configured"})
		return
	}

	casts, err := a.deps.Feed.FetchFeed(c.Request.Context())
	if err != nil {
		a.deps.Logger.Error("failed to fetch feed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"casts": casts})
}

func (a *API) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := createSessionResponse{From: req.From}
	if resp.From == "" {
		if a.deps.Wallet == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from is required"})
			return
		}
		account, err := a.deps.Wallet.Connect(c.Request.Context(), a.deps.WalletDomain, req.Interactive)
		if err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, signersevm.ErrNotConnected) {
				status = http.StatusUnauthorized
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		resp.From = account.Sub
		resp.Universal = account.Universal
	}

	if a.deps.Transferrer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no wallet configured"})
		return
	}

	session, err := tips.NewSession(a.deps.Ctx, resp.From, a.deps.Transferrer, a.deps.SessionConfig,
		tips.WithSessionLogger(a.deps.Logger))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a.hub.Attach(session)
	if a.deps.Metrics != nil {
		a.deps.Metrics.InstrumentSession(session)
	}
	a.deps.Registry.Add(session)

	a.deps.Logger.Info("session started", "session", session.ID(), "from", resp.From)
	resp.ID = session.ID()
	c.JSON(http.StatusCreated, resp)
}

func (a *API) getSession(c *gin.Context) {
	session, ok := a.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.Status())
}

func (a *API) deleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := a.deps.Registry.Remove(id); err != nil {
		a.writeError(c, err)
		return
	}
	a.hub.CloseSession(id)
	c.Status(http.StatusNoContent)
}

func (a *API) reportVisibility(c *gin.Context) {
	session, ok := a.session(c)
	if !ok {
		return
	}

	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wasQueued := queued(session, req.Cast.Hash)
	fired, err := session.ReportVisibility(req.Cast, req.Intersecting, req.Ratio)
	if err != nil {
		a.writeError(c, err)
		return
	}
	if fired && !wasQueued && queued(session, req.Cast.Hash) {
		a.hub.Publish(Event{Type: EventQueued, Session: session.ID(), Casts: []string{req.Cast.Hash}})
	}

	c.JSON(http.StatusOK, visibilityResponse{Fired: fired, Pending: session.PendingCount()})
}

func (a *API) releaseVisibility(c *gin.Context) {
	session, ok := a.session(c)
	if !ok {
		return
	}
	if !session.ReleaseVisibility(c.Param("hash")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no observation for cast"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) setSelection(c *gin.Context) {
	session, ok := a.session(c)
	if !ok {
		return
	}

	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Cast != nil {
		if err := tips.ValidateContentItem(*req.Cast); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if err := session.SetSelection(req.Cast); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.Status())
}

func (a *API) flush(c *gin.Context) {
	session, ok := a.session(c)
	if !ok {
		return
	}
	session.Flush()
	c.JSON(http.StatusAccepted, session.Status())
}

// queued reports whether a viewport tip for hash is pending, in flight or paid
func queued(session *tips.Session, hash string) bool {
	if session.PaidSet().State(hash) != tips.StateUnpaid {
		return true
	}
	for _, p := range session.Pending() {
		if p.ContentHash == hash {
			return true
		}
	}
	return false
}

// session looks up the :id session, writing 404 when it is unknown
func (a *API) session(c *gin.Context) (*tips.Session, bool) {
	session, err := a.deps.Registry.Get(c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return nil, false
	}
	return session, true
}

func (a *API) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tips.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, tips.ErrSessionClosed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}
