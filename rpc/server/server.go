package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/akarls/lumpstore/lib/engine"
	"github.com/akarls/lumpstore/rpc/common"
	"github.com/akarls/lumpstore/rpc/proto"
	"github.com/akarls/lumpstore/rpc/registry"
	"github.com/akarls/lumpstore/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// List batch sizing. A request may ask for less, never for more.
const (
	defaultListBatch = 1024
	maxListBatch     = 65536
)

// Server dispatches RPC requests from a transport onto the storage engines
// held by a device registry.
type Server struct {
	config    common.ServerConfig
	transport transport.IRPCServerTransport
	registry  *registry.Registry
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and device registry as parameters
//
// Usage:
//
//	reg := registry.New()
//	reg.Register("dev0", eng)
//
//	s := server.NewRPCServer(
//		config,
//		unix.NewUnixServerTransport(),
//		reg,
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	reg *registry.Registry,
) *Server {
	return &Server{
		config:    config,
		transport: transport,
		registry:  reg,
	}
}

// Registry returns the device registry the server dispatches onto. Devices
// can be registered and deregistered while the server is running.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Serve initializes logging, binds the dispatch handler to the transport and
// blocks while serving. It returns nil after an orderly Close.
func (s *Server) Serve() error {
	common.InitLoggers(s.config.LogLevel)

	Logger.Infof("Created RPC server")
	Logger.Infof(s.config.String())

	s.transport.RegisterHandler(s.handle)
	return s.transport.Listen(s.config)
}

// Close stops the transport and tears down all registered devices, waiting
// up to the configured drain timeout for in-flight operations.
func (s *Server) Close() error {
	if err := s.transport.Close(); err != nil {
		return err
	}
	return s.registry.Close(time.Duration(s.config.DrainTimeoutSecond) * time.Second)
}

// --------------------------------------------------------------------------
// Dispatch
// --------------------------------------------------------------------------

// handle routes one request to its procedure handler. It always returns a
// well-formed response envelope; a request is never dropped silently.
func (s *Server) handle(proc proto.ProcedureID, req []byte) []byte {
	start := time.Now()

	p, ok := proto.LookupProcedure(proc)
	if !ok {
		requestsTotal("unknown").Inc()
		failuresTotal("unknown").Inc()
		Logger.Warningf("Rejected request for unregistered procedure 0x%08x", uint32(proc))
		return proto.EncodeFailureResponse(proto.Errorf(proto.ErrUnknownProcedure,
			"procedure 0x%08x is not registered", uint32(proc)))
	}

	var resp []byte
	switch p.ID {
	case proto.ProcGet:
		resp = s.handleGet(req)
	case proto.ProcHead:
		resp = s.handleHead(req)
	case proto.ProcPut:
		resp = s.handlePut(req)
	case proto.ProcDelete:
		resp = s.handleDelete(req)
	case proto.ProcListRange:
		resp = s.handleListRange(req)
	case proto.ProcUsage:
		resp = s.handleUsage(req)
	case proto.ProcDeleteRange:
		resp = s.handleDeleteRange(req)
	case proto.ProcSync:
		resp = s.handleSync(req)
	}

	requestsTotal(p.Name).Inc()
	if proto.IsFailureResponse(resp) {
		failuresTotal(p.Name).Inc()
	}
	requestDuration(p.Name).UpdateDuration(start)
	return resp
}

func (s *Server) handleGet(b []byte) []byte {
	req, err := proto.DecodeLumpRequest(b)
	if err != nil {
		return decodeFailure(err)
	}
	return s.withEngine(req.DeviceID, func(ctx context.Context, eng engine.Engine) ([]byte, *proto.Error) {
		data, found, err := eng.Get(ctx, req.LumpID)
		if err != nil {
			return nil, proto.FromEngineError(err)
		}
		return encode(proto.EncodeGetResponse(proto.GetResponse{Found: found, Data: data}))
	})
}

func (s *Server) handleHead(b []byte) []byte {
	req, err := proto.DecodeLumpRequest(b)
	if err != nil {
		return decodeFailure(err)
	}
	return s.withEngine(req.DeviceID, func(ctx context.Context, eng engine.Engine) ([]byte, *proto.Error) {
		size, found, err := eng.Head(ctx, req.LumpID)
		if err != nil {
			return nil, proto.FromEngineError(err)
		}
		return encode(proto.EncodeHeadResponse(proto.HeadResponse{Found: found, Size: size}))
	})
}

func (s *Server) handlePut(b []byte) []byte {
	req, err := proto.DecodePutRequest(b)
	if err != nil {
		return decodeFailure(err)
	}
	return s.withEngine(req.DeviceID, func(ctx context.Context, eng engine.Engine) ([]byte, *proto.Error) {
		created, err := eng.Put(ctx, req.LumpID, req.Data)
		if err != nil {
			return nil, proto.FromEngineError(err)
		}
		return encode(proto.EncodePutResponse(proto.PutResponse{Created: created}))
	})
}

func (s *Server) handleDelete(b []byte) []byte {
	req, err := proto.DecodeLumpRequest(b)
	if err != nil {
		return decodeFailure(err)
	}
	return s.withEngine(req.DeviceID, func(ctx context.Context, eng engine.Engine) ([]byte, *proto.Error) {
		existed, err := eng.Delete(ctx, req.LumpID)
		if err != nil {
			return nil, proto.FromEngineError(err)
		}
		return encode(proto.EncodeDeleteResponse(proto.DeleteResponse{Existed: existed}))
	})
}

func (s *Server) handleListRange(b []byte) []byte {
	req, err := proto.DecodeListRequest(b)
	if err != nil {
		return decodeFailure(err)
	}

	// Clamp before the int conversion so an oversized u32 cannot wrap on
	// 32-bit platforms.
	limit := defaultListBatch
	if req.Limit > 0 {
		if req.Limit > maxListBatch {
			req.Limit = maxListBatch
		}
		limit = int(req.Limit)
	}

	// A cursor restarts the listing strictly after the last seen id. It can
	// only narrow the requested range, never widen it.
	r := req.Range
	if req.Cursor != nil {
		if !r.HasStart || req.Cursor.Compare(r.Start) >= 0 {
			r.Start = *req.Cursor
			r.HasStart = true
			r.StartIncl = false
		}
	}

	return s.withEngine(req.DeviceID, func(ctx context.Context, eng engine.Engine) ([]byte, *proto.Error) {
		// Fetch one extra id to learn whether the batch is truncated.
		ids, err := eng.ListRange(ctx, r, limit+1)
		if err != nil {
			return nil, proto.FromEngineError(err)
		}
		truncated := len(ids) > limit
		if truncated {
			ids = ids[:limit]
		}
		return encode(proto.EncodeListResponse(proto.ListResponse{IDs: ids, Truncated: truncated}))
	})
}

func (s *Server) handleUsage(b []byte) []byte {
	req, err := proto.DecodeDeviceRequest(b)
	if err != nil {
		return decodeFailure(err)
	}
	return s.withEngine(req.DeviceID, func(ctx context.Context, eng engine.Engine) ([]byte, *proto.Error) {
		usage, err := eng.Usage(ctx)
		if err != nil {
			return nil, proto.FromEngineError(err)
		}
		return encode(proto.EncodeUsageResponse(proto.UsageResponse{Usage: usage}))
	})
}

func (s *Server) handleDeleteRange(b []byte) []byte {
	req, err := proto.DecodeRangeRequest(b)
	if err != nil {
		return decodeFailure(err)
	}
	return s.withEngine(req.DeviceID, func(ctx context.Context, eng engine.Engine) ([]byte, *proto.Error) {
		count, err := eng.DeleteRange(ctx, req.Range)
		if err != nil {
			return nil, proto.FromEngineError(err)
		}
		return encode(proto.EncodeDeleteRangeResponse(proto.DeleteRangeResponse{Count: count}))
	})
}

func (s *Server) handleSync(b []byte) []byte {
	req, err := proto.DecodeDeviceRequest(b)
	if err != nil {
		return decodeFailure(err)
	}
	return s.withEngine(req.DeviceID, func(ctx context.Context, eng engine.Engine) ([]byte, *proto.Error) {
		if err := eng.Sync(ctx); err != nil {
			return nil, proto.FromEngineError(err)
		}
		return encode(proto.EncodeSyncResponse())
	})
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// withEngine resolves the device, bounds the operation with the configured
// timeout and contains any engine panic to this one request.
func (s *Server) withEngine(deviceID string, fn func(ctx context.Context, eng engine.Engine) ([]byte, *proto.Error)) []byte {
	eng, release, err := s.registry.Resolve(deviceID)
	if err != nil {
		return proto.EncodeFailureResponse(registryFailure(deviceID, err))
	}
	defer release()

	ctx := context.Background()
	if s.config.TimeoutSecond > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.config.TimeoutSecond)*time.Second)
		defer cancel()
	}

	var resp []byte
	var perr *proto.Error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				Logger.Errorf("Engine for device %q panicked: %v", deviceID, rec)
				perr = proto.Errorf(proto.ErrInternalStorage, "engine panic: %v", rec)
			}
		}()
		resp, perr = fn(ctx, eng)
	}()

	if perr != nil {
		return proto.EncodeFailureResponse(perr)
	}
	return resp
}

// registryFailure translates a registry resolution error to the wire.
func registryFailure(deviceID string, err error) *proto.Error {
	switch {
	case errors.Is(err, registry.ErrDeviceNotFound):
		return proto.Errorf(proto.ErrDeviceNotFound, "device %q not found", deviceID)
	case errors.Is(err, registry.ErrDeviceClosed):
		return proto.Errorf(proto.ErrDeviceClosed, "device %q is closed", deviceID)
	default:
		return proto.NewError(proto.ErrInternalStorage, err.Error())
	}
}

// decodeFailure turns a request decode error into a failure envelope.
func decodeFailure(err error) []byte {
	var e *proto.Error
	if errors.As(err, &e) {
		return proto.EncodeFailureResponse(e)
	}
	return proto.EncodeFailureResponse(proto.NewError(proto.ErrDecode, err.Error()))
}

// encode adapts a response encoder result to the handler signature.
func encode(b []byte, err error) ([]byte, *proto.Error) {
	if err != nil {
		var e *proto.Error
		if errors.As(err, &e) {
			return nil, e
		}
		return nil, proto.NewError(proto.ErrInternalStorage, err.Error())
	}
	return b, nil
}

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

func requestsTotal(procedure string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`rpc_requests_total{procedure=%q}`, procedure))
}

func failuresTotal(procedure string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`rpc_failures_total{procedure=%q}`, procedure))
}

func requestDuration(procedure string) *metrics.Histogram {
	return metrics.GetOrCreateHistogram(fmt.Sprintf(`rpc_request_duration_seconds{procedure=%q}`, procedure))
}
