package handler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

const orderServiceName = "storefront.v1.OrderService"

// OrderServiceServer is the gRPC surface of order placement. Messages are
// google.protobuf.Struct values carrying the same JSON shapes as the HTTP API.
type OrderServiceServer interface {
	PlaceOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PlaceCartOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FilterItems(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var OrderServiceDesc = grpc.ServiceDesc{
	ServiceName: orderServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PlaceOrder", Handler: unaryHandler("PlaceOrder", OrderServiceServer.PlaceOrder)},
		{MethodName: "PlaceCartOrder", Handler: unaryHandler("PlaceCartOrder", OrderServiceServer.PlaceCartOrder)},
		{MethodName: "FilterItems", Handler: unaryHandler("FilterItems", OrderServiceServer.FilterItems)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/v1/order_service.proto",
}

func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&OrderServiceDesc, srv)
}

type unaryMethod func(OrderServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + orderServiceName + "/" + name
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrderServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(OrderServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type OrderServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderServiceClient(cc grpc.ClientConnInterface) *OrderServiceClient {
	return &OrderServiceClient{cc: cc}
}

func (c *OrderServiceClient) PlaceOrder(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "PlaceOrder", in, opts...)
}

func (c *OrderServiceClient) PlaceCartOrder(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "PlaceCartOrder", in, opts...)
}

func (c *OrderServiceClient) FilterItems(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "FilterItems", in, opts...)
}

func (c *OrderServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+orderServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type GRPCHandler struct {
	orderService   *service.OrderService
	catalogService *service.CatalogService
}

func NewGRPCHandler(orderService *service.OrderService, catalogService *service.CatalogService) *GRPCHandler {
	return &GRPCHandler{orderService: orderService, catalogService: catalogService}
}

type filterGRPCRequest struct {
	Name     string   `json:"name"`
	MinPrice *float64 `json:"min_price"`
	MaxPrice *float64 `json:"max_price"`
	MinStock *int     `json:"min_stock"`
	MaxStock *int     `json:"max_stock"`
	Expr     string   `json:"expr"`
}

func (h *GRPCHandler) PlaceOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req PlaceOrderHTTPRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	if req.UserID <= 0 || req.ItemID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "user_id and item_id must be positive")
	}

	placement, err := h.orderService.PlaceOrder(ctx, service.OrderRequest{
		UserID:         req.UserID,
		ItemID:         req.ItemID,
		Count:          req.Count,
		IdempotencyKey: idempotencyKey(ctx),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(placement)
}

func (h *GRPCHandler) PlaceCartOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req CartHTTPRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	if req.UserID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "user_id must be positive")
	}

	result, err := h.orderService.PlaceCartOrder(ctx, service.CartRequest{
		UserID:         req.UserID,
		Lines:          req.Items,
		IdempotencyKey: idempotencyKey(ctx),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(result)
}

func (h *GRPCHandler) FilterItems(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req filterGRPCRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}

	var expr *service.ItemExpr
	if req.Expr != "" {
		var err error
		if expr, err = service.CompileItemExpr(req.Expr); err != nil {
			return nil, toStatus(err)
		}
	}

	items, err := h.catalogService.FilterItems(ctx, domain.ItemCriteria{
		Name:     req.Name,
		MinPrice: req.MinPrice,
		MaxPrice: req.MaxPrice,
		MinStock: req.MinStock,
		MaxStock: req.MaxStock,
	}, expr)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(map[string]any{"items": items})
}

// LoggingInterceptor logs each unary call with its status code.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc request",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("duration", time.Since(start)))
		return resp, err
	}
}

func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get("idempotency-key"); len(values) > 0 {
		return values[0]
	}
	return ""
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrDuplicateRequest):
		return status.Error(codes.AlreadyExists, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// fromStruct decodes a Struct through its JSON form into dst.
func fromStruct(in *structpb.Struct, dst any) error {
	raw, err := in.MarshalJSON()
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return nil
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := new(structpb.Struct)
	if err := out.UnmarshalJSON(raw); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}
