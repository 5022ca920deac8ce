package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ashureev/wellness-planner/internal/domain"
	"github.com/ashureev/wellness-planner/internal/tools"
)

// decideMethod is the unary RPC a remote reasoning service exposes. Request
// and response are google.protobuf.Struct documents.
const decideMethod = "/planner.v1.ReasoningEngine/Decide"

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
)

// GrpcEngine delegates decisions to a remote reasoning service over gRPC.
type GrpcEngine struct {
	conn   *grpc.ClientConn
	addr   string
	logger *slog.Logger
}

// GrpcEngineConfig holds configuration for the gRPC engine.
type GrpcEngineConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// DefaultGrpcEngineConfig returns default configuration.
func DefaultGrpcEngineConfig() GrpcEngineConfig {
	return GrpcEngineConfig{
		Address:          "localhost:50051",
		ConnectTimeout:   5 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// NewGrpcEngine dials the reasoning service and waits until it is ready.
func NewGrpcEngine(cfg GrpcEngineConfig, logger *slog.Logger) (*GrpcEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultGrpcEngineConfig()
	if cfg.Address == "" {
		cfg.Address = def.Address
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.KeepaliveTime <= 0 {
		cfg.KeepaliveTime = def.KeepaliveTime
	}
	if cfg.KeepaliveTimeout <= 0 {
		cfg.KeepaliveTimeout = def.KeepaliveTimeout
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}

	// Build client connection (no network I/O yet).
	conn, err := grpc.NewClient(cfg.Address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to reasoning service at %s: %w", cfg.Address, err)
	}

	// Force a connection attempt during startup so we fail fast on bad endpoints.
	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("reasoning service at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to reasoning service", "address", cfg.Address)
	return &GrpcEngine{conn: conn, addr: cfg.Address, logger: logger}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Name implements Engine.
func (c *GrpcEngine) Name() string { return "grpc" }

// Close closes the gRPC connection.
func (c *GrpcEngine) Close() error {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.Close(); err != nil {
		c.logger.Warn("failed to close gRPC connection", "error", err)
		return err
	}
	return nil
}

// Decide implements Engine with one unary call per step.
func (c *GrpcEngine) Decide(ctx context.Context, req DecisionRequest) (Decision, error) {
	in, err := encodeDecisionRequest(req)
	if err != nil {
		return Decision{}, fmt.Errorf("encode decision request: %w", err)
	}

	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, decideMethod, in, out, grpc.WaitForReady(true)); err != nil {
		c.logger.Warn("Decide RPC failed", "error", err, "agent", req.Agent.Name)
		return Decision{}, fmt.Errorf("%w: decide rpc: %v", domain.ErrEngineFailure, err)
	}
	return decodeDecision(out)
}

func encodeDecisionRequest(req DecisionRequest) (*structpb.Struct, error) {
	toolList := make([]any, 0, len(req.Agent.Tools))
	for _, spec := range req.Agent.ToolSpecs() {
		params := make([]any, 0, len(spec.Params))
		for _, p := range spec.Params {
			params = append(params, map[string]any{"name": p.Name, "description": p.Description})
		}
		toolList = append(toolList, map[string]any{
			"name":        string(spec.Name),
			"description": spec.Description,
			"params":      params,
		})
	}

	handoffs := make([]any, 0, len(req.Agent.Handoffs))
	for _, h := range req.Agent.Handoffs {
		handoffs = append(handoffs, map[string]any{"target": h.Target, "description": h.Description})
	}

	history := make([]any, 0, len(req.History))
	for _, m := range req.History {
		history = append(history, map[string]any{"role": string(m.Role), "content": m.Content})
	}

	outcomes := make([]any, 0, len(req.Outcomes))
	for _, o := range req.Outcomes {
		args := make(map[string]any, len(o.Call.Args))
		for k, v := range o.Call.Args {
			args[k] = v
		}
		outcomes = append(outcomes, map[string]any{
			"call_id": o.Call.ID,
			"tool":    string(o.Call.Name),
			"args":    args,
			"result":  PayloadMap(o.Result),
		})
	}

	return structpb.NewStruct(map[string]any{
		"agent":          req.Agent.Name,
		"instructions":   systemPrompt(req),
		"tools":          toolList,
		"handoffs":       handoffs,
		"history":        history,
		"utterance":      req.Utterance,
		"outcomes":       outcomes,
		"handoff_from":   req.HandoffFrom,
		"handoff_reason": req.HandoffReason,
	})
}

func decodeDecision(out *structpb.Struct) (Decision, error) {
	m := out.AsMap()
	str := func(key string) string {
		s, _ := m[key].(string)
		return s
	}

	switch kind := str("kind"); kind {
	case "final":
		return Final(str("text")), nil
	case "tool_call":
		raw, _ := m["args"].(map[string]any)
		return CallTool(tools.Call{ID: str("call_id"), Name: tools.Name(str("tool")), Args: stringArgs(raw)}), nil
	case "handoff":
		return HandoffTo(str("target"), str("reason")), nil
	default:
		return Decision{}, fmt.Errorf("%w: unknown decision kind %q", domain.ErrEngineFailure, kind)
	}
}
