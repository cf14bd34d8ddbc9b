package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"healthplus-server/internal/queue"
	"healthplus-server/internal/utils"
)

const keepAliveInterval = 25 * time.Second

// QueueHandler handles waiting-room requests.
type QueueHandler struct {
	Queue *queue.Service
}

// NewQueueHandler creates a new QueueHandler.
func NewQueueHandler(svc *queue.Service) *QueueHandler {
	return &QueueHandler{Queue: svc}
}

// JoinQueueRequest represents the request body for taking a token.
type JoinQueueRequest struct {
	DoctorID string `json:"doctorId" binding:"required"`
}

// TriageRequest represents the pre-consultation form.
type TriageRequest struct {
	Complaint string `json:"complaint"`
	Symptoms  string `json:"symptoms"`
}

// GetQueue returns the doctor's active queue in token order.
func (h *QueueHandler) GetQueue(c *gin.Context) {
	entries, err := h.Queue.ActiveQueue(c.Request.Context(), c.Param("doctorId"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Queue fetched successfully", entries)
}

// JoinQueue gives the calling patient the next token for a doctor.
func (h *QueueHandler) JoinQueue(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var req JoinQueueRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	entry, err := h.Queue.JoinQueue(c.Request.Context(), caller, req.DoctorID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Created(c, "Joined queue successfully", entry)
}

// CallNext finishes the current patient and calls the next waiting token.
func (h *QueueHandler) CallNext(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	res, err := h.Queue.CallNext(c.Request.Context(), caller, c.Param("doctorId"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	message := "Next patient called"
	if !res.Advanced {
		message = "Queue is empty"
	}
	utils.Success(c, message, res)
}

// EndSession finishes the patient being served without calling another.
func (h *QueueHandler) EndSession(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	finished, err := h.Queue.EndSession(c.Request.Context(), caller, c.Param("doctorId"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if finished == nil {
		utils.Success(c, "No patient is being served", nil)
		return
	}
	utils.Success(c, "Session ended", finished)
}

// SubmitTriage records the complaint and symptoms on the caller's entry.
func (h *QueueHandler) SubmitTriage(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var req TriageRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	entry, err := h.Queue.SubmitTriage(c.Request.Context(), caller, c.Param("id"), req.Complaint, req.Symptoms)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Triage submitted successfully", entry)
}

// GetStatus returns an entry's position, wait estimate and the token being served.
func (h *QueueHandler) GetStatus(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	status, err := h.Queue.Status(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Queue status fetched successfully", status)
}

// StreamEvents pushes the doctor's queue changes as server-sent events. The
// first event is a snapshot of the active queue.
func (h *QueueHandler) StreamEvents(c *gin.Context) {
	ctx := c.Request.Context()
	doctorID := c.Param("doctorId")

	events, err := h.Queue.Subscribe(ctx, doctorID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	snapshot, err := h.Queue.ActiveQueue(ctx, doctorID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.SSEvent("snapshot", snapshot)
	c.Writer.Flush()
	defer log.Debug().Str("doctor_id", doctorID).Msg("queue event stream closed")

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent(string(e.Type), e)
			c.Writer.Flush()
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			c.Writer.Flush()
		}
	}
}
