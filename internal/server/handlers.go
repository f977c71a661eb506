package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"arbiter/internal/events"
	"arbiter/internal/judge"
	"arbiter/internal/packet"
	appErr "arbiter/pkg/errors"
	"arbiter/pkg/utils/logger"
)

func (s *Server) handleHealth(c *gin.Context) {
	respondOK(c, gin.H{"status": "ok"})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, appErr.Wrapf(err, appErr.InvalidParams, "invalid login request"))
		return
	}
	token, claims, err := s.auth.Login(req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"token":    token,
		"username": claims.Username,
		"role":     claims.Role,
	})
}

func (s *Server) handleCompetition(c *gin.Context) {
	respondOK(c, gin.H{
		"name":            s.pkt.Name,
		"clock":           s.clk.Snapshot(),
		"max_submissions": s.pkt.Judge.MaxSubmissions,
		"connected":       s.hub.Count(),
	})
}

func (s *Server) handleClock(c *gin.Context) {
	respondOK(c, s.clk.Snapshot())
}

// testView is one sample test with its data. Hidden tests only appear in
// admin views; everyone still sees them counted.
type testView struct {
	ID       string  `json:"id"`
	Input    string  `json:"input"`
	Expected string  `json:"expected"`
	Hidden   bool    `json:"hidden"`
	Weight   float64 `json:"weight"`
}

type problemView struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	VisibleTests int        `json:"visible_tests"`
	HiddenTests  int        `json:"hidden_tests"`
	Tests        []testView `json:"tests"`
}

func toProblemView(pkt *packet.Packet, p packet.Problem, includeHidden bool) (problemView, error) {
	view := problemView{ID: p.ID, Title: p.Title, Description: p.Description}
	for _, tc := range p.Tests {
		if tc.Hidden {
			view.HiddenTests++
		} else {
			view.VisibleTests++
		}
		if tc.Hidden && !includeHidden {
			continue
		}
		input, err := pkt.InputBytes(tc)
		if err != nil {
			return problemView{}, err
		}
		expected, err := pkt.ExpectedBytes(tc)
		if err != nil {
			return problemView{}, err
		}
		view.Tests = append(view.Tests, testView{
			ID:       tc.ID,
			Input:    string(input),
			Expected: string(expected),
			Hidden:   tc.Hidden,
			Weight:   tc.Weight,
		})
	}
	return view, nil
}

func (s *Server) handleProblems(c *gin.Context) {
	claims, _ := s.claims(c)
	includeHidden := claims.Role == packet.RoleAdmin

	views := make([]problemView, 0, len(s.pkt.Problems))
	for _, p := range s.pkt.Problems {
		view, err := toProblemView(s.pkt, p, includeHidden)
		if err != nil {
			respondError(c, err)
			return
		}
		views = append(views, view)
	}
	respondOK(c, views)
}

func (s *Server) handleProblem(c *gin.Context) {
	prob, err := s.pkt.Problem(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	claims, _ := s.claims(c)
	view, err := toProblemView(s.pkt, prob, claims.Role == packet.RoleAdmin)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, view)
}

func (s *Server) handleLanguages(c *gin.Context) {
	names := make([]string, 0, len(s.pkt.Languages))
	for _, lang := range s.pkt.Languages {
		names = append(names, lang.Name)
	}
	respondOK(c, names)
}

type submitRequest struct {
	ProblemID  string `json:"problem_id" binding:"required"`
	Language   string `json:"language" binding:"required"`
	SourceCode string `json:"source_code" binding:"required"`
}

func (s *Server) handleSubmit(c *gin.Context) {
	claims, _ := s.claims(c)
	if claims.Role == packet.RoleSpectator {
		respondError(c, appErr.Newf(appErr.Forbidden, "spectators cannot submit"))
		return
	}

	info := s.clk.Snapshot()
	if info.StartedAt.IsZero() || info.Paused {
		respondError(c, appErr.Newf(appErr.CompetitionPaused, "competition is not running"))
		return
	}
	if info.Finished {
		respondError(c, appErr.Newf(appErr.CompetitionFinished, "competition has finished"))
		return
	}

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, appErr.Wrapf(err, appErr.InvalidParams, "invalid submission request"))
		return
	}

	sub := judge.Submission{
		ID:          uuid.NewString(),
		Submitter:   claims.Username,
		ProblemID:   req.ProblemID,
		Language:    req.Language,
		SourceCode:  req.SourceCode,
		SubmittedAt: time.Now(),
	}
	if err := s.pipeline.Submit(c.Request.Context(), sub); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"submission_id": sub.ID})
}

func (s *Server) handleListSubmissions(c *gin.Context) {
	claims, _ := s.claims(c)
	records, err := s.history.ListBySubmitter(c.Request.Context(), claims.Username, 100)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, records)
}

func (s *Server) handleGetSubmission(c *gin.Context) {
	claims, _ := s.claims(c)
	id := c.Param("id")

	rec, tests, err := s.history.GetResult(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if rec.Submitter != claims.Username && claims.Role != packet.RoleAdmin {
		respondError(c, appErr.Newf(appErr.Forbidden, "not your submission"))
		return
	}

	// Hidden test output is admin-only.
	if claims.Role != packet.RoleAdmin {
		for i := range tests {
			if tests[i].Hidden {
				tests[i].Stdout = ""
				tests[i].Stderr = ""
			}
		}
	}
	respondOK(c, gin.H{"submission": rec, "tests": tests})
}

func (s *Server) handleCancelSubmission(c *gin.Context) {
	claims, _ := s.claims(c)
	id := c.Param("id")

	sub, _, ok := s.registry.Get(id)
	if !ok {
		respondError(c, appErr.Newf(appErr.SubmissionNotFound, "submission %s is not in flight", id))
		return
	}
	if sub.Submitter != claims.Username && claims.Role != packet.RoleAdmin {
		respondError(c, appErr.Newf(appErr.Forbidden, "not your submission"))
		return
	}
	if !s.pipeline.Cancel(id) {
		respondError(c, appErr.Newf(appErr.SubmissionNotFound, "submission %s is not in flight", id))
		return
	}
	respondOK(c, gin.H{"cancelled": id})
}

func (s *Server) handleSubmissionStatus(c *gin.Context) {
	id := c.Param("id")
	if _, state, ok := s.registry.Get(id); ok {
		progress, _ := s.status.GetProgress(c.Request.Context(), id)
		respondOK(c, gin.H{"state": state, "progress": progress})
		return
	}
	state, err := s.status.GetState(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"state": state})
}

func (s *Server) handleLeaderboard(c *gin.Context) {
	rows, err := s.history.Leaderboard(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rows)
}

func (s *Server) handleCheckIn(c *gin.Context) {
	claims, _ := s.claims(c)
	s.bus.Publish(events.Event{
		Kind:     events.KindCheckIn,
		Username: claims.Username,
	})
	respondOK(c, gin.H{"checked_in": claims.Username})
}

func (s *Server) handleClockStart(c *gin.Context) {
	if err := s.clk.Start(); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, s.clk.Snapshot())
}

func (s *Server) handleClockPause(c *gin.Context) {
	if err := s.clk.Pause(); err != nil {
		respondError(c, err)
		return
	}
	s.bus.Publish(events.Event{Kind: events.KindCompetitionPause})
	respondOK(c, s.clk.Snapshot())
}

func (s *Server) handleClockUnpause(c *gin.Context) {
	if err := s.clk.Unpause(); err != nil {
		respondError(c, err)
		return
	}
	s.bus.Publish(events.Event{Kind: events.KindCompetitionUnpause})
	respondOK(c, s.clk.Snapshot())
}

type announceRequest struct {
	Message string `json:"message" binding:"required"`
}

func (s *Server) handleAnnounce(c *gin.Context) {
	var req announceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, appErr.Wrapf(err, appErr.InvalidParams, "invalid announcement"))
		return
	}
	claims, _ := s.claims(c)
	s.bus.Publish(events.Event{
		Kind:     events.KindAnnouncement,
		Username: claims.Username,
		Message:  req.Message,
	})
	respondOK(c, gin.H{"announced": true})
}

func (s *Server) handleKick(c *gin.Context) {
	username := c.Param("username")
	kicked := s.hub.Kick(username)
	s.bus.Publish(events.Event{
		Kind:     events.KindTeamKick,
		Username: username,
	})
	respondOK(c, gin.H{"kicked_sessions": kicked})
}

// handleBan closes the user's sessions and blocks further API access for
// the rest of the competition.
func (s *Server) handleBan(c *gin.Context) {
	username := c.Param("username")
	s.banUser(username)
	kicked := s.hub.Kick(username)
	s.bus.Publish(events.Event{
		Kind:     events.KindTeamBan,
		Username: username,
	})
	respondOK(c, gin.H{"banned": username, "kicked_sessions": kicked})
}

func (s *Server) handleRegistry(c *gin.Context) {
	respondOK(c, s.registry.Snapshot())
}

func (s *Server) handleWebsocket(c *gin.Context) {
	claims, _ := s.claims(c)
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}
	s.hub.Register(conn, claims.Username, claims.Role)
}
