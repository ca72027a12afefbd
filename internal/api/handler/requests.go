package handler

import (
	"context"
	"net/http"

	"pratojusto/backend/internal/lifecycle"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func (h *Handler) CreateRequest(c *gin.Context) {
	donationID, ok := idParam(c, "id")
	if !ok {
		return
	}
	out, err := h.Lifecycle.Create(c.Request.Context(), donationID, currentUser(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.publish(c.Request.Context(), out)
	c.JSON(http.StatusCreated, out.Request)
}

func (h *Handler) ListDonationRequests(c *gin.Context) {
	donationID, ok := idParam(c, "id")
	if !ok {
		return
	}
	reqs, err := h.Lifecycle.ListForDonation(c.Request.Context(), donationID, currentUser(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

func (h *Handler) ListMyRequests(c *gin.Context) {
	reqs, err := h.Lifecycle.ListForRequester(c.Request.Context(), currentUser(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

func (h *Handler) GetRequest(c *gin.Context) {
	requestID, ok := idParam(c, "id")
	if !ok {
		return
	}
	req, err := h.Lifecycle.Get(c.Request.Context(), requestID, currentUser(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// AcceptRequest also opens the chat thread between donor and requester.
func (h *Handler) AcceptRequest(c *gin.Context) {
	h.transition(c, h.Lifecycle.Accept, func(ctx context.Context, out *lifecycle.Outcome) error {
		_, err := h.Threads.GetOrCreate(ctx, out.Request.ID, out.Donation.OwnerUserID, out.Request.RequesterID)
		return err
	})
}

func (h *Handler) RecuseRequest(c *gin.Context) {
	h.transition(c, h.Lifecycle.Recuse, h.deactivateThread)
}

func (h *Handler) CancelRequest(c *gin.Context) {
	h.transition(c, h.Lifecycle.Cancel, h.deactivateThread)
}

func (h *Handler) CompleteRequest(c *gin.Context) {
	h.transition(c, h.Lifecycle.MarkCompleted, nil)
}

type transitionFunc func(ctx context.Context, requestID, actorID uint) (*lifecycle.Outcome, error)

// transition runs op on the :id request, then the optional follow-up, then
// fans out notices. Follow-up failures are logged; the transition itself
// already committed.
func (h *Handler) transition(c *gin.Context, op transitionFunc, after func(context.Context, *lifecycle.Outcome) error) {
	requestID, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	out, err := op(ctx, requestID, currentUser(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if after != nil {
		if err := after(ctx, out); err != nil {
			h.log.WithError(err).WithField("request_id", requestID).Warn("post-transition step failed")
		}
	}
	h.publish(ctx, out)
	c.JSON(http.StatusOK, out.Request)
}

func (h *Handler) deactivateThread(ctx context.Context, out *lifecycle.Outcome) error {
	return h.Threads.Deactivate(ctx, out.Request.ID)
}

// publish pushes the outcome's notices. Delivery is best effort.
func (h *Handler) publish(ctx context.Context, out *lifecycle.Outcome) {
	for _, n := range out.Notices() {
		if err := h.Chat.NotifyLifecycleChange(ctx, n.UserID, n.Event); err != nil {
			h.log.WithError(err).WithFields(logrus.Fields{
				"user_id":    n.UserID,
				"request_id": n.Event.RequestID,
			}).Warn("failed to push request update")
		}
	}
}
