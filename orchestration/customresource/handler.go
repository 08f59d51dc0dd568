// Package customresource runs the lifecycle-event state machine for the
// deployer custom resource: dispatch by request type, deploy, and report
// exactly one terminal response to the orchestration system.
package customresource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/goccy/go-json"

	"github.com/gurre/sitedeploy-go/logic/lifecycle"
	"github.com/gurre/sitedeploy-go/logic/response"
	"github.com/gurre/sitedeploy-go/orchestration/deployer"
)

// ErrUnknownRequestType is reported for request types other than Create,
// Update and Delete.
var ErrUnknownRequestType = errors.New("customresource: unknown request type")

// ErrPanic wraps a panic recovered while handling an event.
var ErrPanic = errors.New("customresource: panic")

// deploySuccessful is the message returned in Data on Create and Update.
const deploySuccessful = "Deploy successful"

// NotifyReserve is the part of the invocation deadline withheld from the
// deploy so the terminal response can still be sent.
const NotifyReserve = 10 * time.Second

// Deployer runs a deploy against a target.
type Deployer interface {
	Deploy(ctx context.Context, requestID string, target lifecycle.Target) (deployer.Outcome, error)
}

// Notifier delivers the terminal response to the event's callback URL.
type Notifier interface {
	Notify(ctx context.Context, responseURL string, resp lifecycle.Response) error
}

// Handler processes lifecycle events.
type Handler struct {
	deployer           Deployer
	notifier           Notifier
	physicalResourceID string
	logStream          string
	notifyReserve      time.Duration
	logger             *slog.Logger
}

// NewHandler creates a lifecycle handler. physicalResourceID is the content
// hash of the deployed build and may be empty; logStream names the log stream
// of the running invocation and is quoted in every response reason.
//
//	h := customresource.NewHandler(d, n, cfg.ContentHash, lambdacontext.LogStreamName, logger)
//	lambda.Start(h.Handle)
func NewHandler(d Deployer, n Notifier, physicalResourceID, logStream string, logger *slog.Logger) *Handler {
	return &Handler{
		deployer:           d,
		notifier:           n,
		physicalResourceID: physicalResourceID,
		logStream:          logStream,
		notifyReserve:      NotifyReserve,
		logger:             logger,
	}
}

// Handle processes one event. Exactly one response is sent on every path,
// including a panic during the deploy or an expired invocation deadline.
// The deploy runs under the invocation deadline minus NotifyReserve; the
// response is sent on a context that outlives the invocation's cancellation.
// Notification failures are logged and Handle still returns nil: a returned
// error would make the runtime retry the invocation and produce a second
// response.
func (h *Handler) Handle(ctx context.Context, raw cfn.Event) error {
	h.logReceived(raw)

	ev, problems := lifecycle.FromCFN(raw)
	for _, p := range problems {
		h.logger.Warn("ignoring malformed resource property", "problem", p, "requestID", ev.RequestID)
	}

	deployCtx, cancel := h.deployContext(ctx)
	resp, cause := h.process(deployCtx, ev)
	cancel()

	h.logger.Info("sending response",
		"status", resp.Status,
		"requestID", resp.RequestID,
		"physicalResourceID", resp.PhysicalResourceID,
		"cause", cause)
	if err := h.notifier.Notify(context.WithoutCancel(ctx), ev.ResponseURL, resp); err != nil {
		h.logger.Error("failed to send response", "error", err, "requestID", ev.RequestID)
	}
	return nil
}

// deployContext bounds the deploy to the invocation deadline less the
// notify reserve. Without a deadline the parent context is used as is.
func (h *Handler) deployContext(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, deadline.Add(-h.notifyReserve))
}

// process runs the state machine and always yields a terminal response.
// cause is non-nil exactly when the response is FAILED.
func (h *Handler) process(ctx context.Context, ev lifecycle.Event) (resp lifecycle.Response, cause error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("panic in lifecycle handler", "panic", r, "requestType", ev.RequestType)
			cause = fmt.Errorf("%w: %v", ErrPanic, r)
			resp = response.Failure(ev, cause, h.physicalResourceID, h.logStream)
		}
	}()

	if !ev.RequestType.Known() {
		err := fmt.Errorf("%w: %q", ErrUnknownRequestType, ev.RequestType)
		h.logger.Error("unsupported request", "error", err, "requestID", ev.RequestID)
		return response.Failure(ev, err, h.physicalResourceID, h.logStream), err
	}

	if ev.RequestType.Deploys() {
		out, err := h.deployer.Deploy(ctx, ev.RequestID, ev.Target)
		if err != nil {
			h.logger.Error("deploy failed", "error", err, "requestType", ev.RequestType, "requestID", ev.RequestID)
			return response.Failure(ev, err, h.physicalResourceID, h.logStream), err
		}
		h.logger.Info("deploy finished",
			"requestType", ev.RequestType,
			"skipped", out.Skipped,
			"uploaded", len(out.Uploaded),
			"invalidationID", out.InvalidationID)
		return response.Success(ev, map[string]string{"Message": deploySuccessful}, h.physicalResourceID, h.logStream), nil
	}

	h.logger.Info("delete requested, leaving deployed assets in place", "requestID", ev.RequestID)
	return response.Success(ev, nil, h.physicalResourceID, h.logStream), nil
}

func (h *Handler) logReceived(raw cfn.Event) {
	body, err := json.Marshal(raw)
	if err != nil {
		h.logger.Warn("request received, event not serializable", "error", err, "requestID", raw.RequestID)
		return
	}
	h.logger.Info("request received", "event", string(body))
}
