package server

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/jbraun2025/jsonrpc-go/dispatcher"
	"github.com/jbraun2025/jsonrpc-go/rpcerror"
)

// Register scans rcvr's exported methods and installs every one with a
// recognized signature, namespaced by the receiver's type name in the
// "Type.Method" form (a *Calculator's Add becomes "Calculator.Add").
//
// Recognized signatures:
//
//	func (r *T) M(ctx context.Context, params P) (R, error)  // method call
//	func (r *T) M(ctx context.Context, params P)             // notification
//
// P and R are any JSON-marshalable types. The adapter deserializes the
// request params into P before the call and serializes R afterwards; the
// core dispatcher stays untyped.
func (s *Server) Register(rcvr any) error {
	typ := reflect.TypeOf(rcvr)
	if typ == nil || typ.Kind() != reflect.Ptr || typ.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("rpc: receiver must be a pointer to a struct, got %v", typ)
	}
	return s.RegisterName(typ.Elem().Name(), rcvr)
}

// RegisterName is Register with an explicit namespace. An empty
// namespace registers methods under their bare names.
func (s *Server) RegisterName(namespace string, rcvr any) error {
	val := reflect.ValueOf(rcvr)
	typ := val.Type()

	registered := 0
	for i := 0; i < typ.NumMethod(); i++ {
		method := typ.Method(i)
		if !method.IsExported() {
			continue
		}

		name := method.Name
		if namespace != "" {
			name = namespace + "." + name
		}

		switch kind, paramType := classifyMethod(method); kind {
		case methodCall:
			s.RegisterMethod(name, methodAdapter(val, method, paramType))
			registered++
		case notification:
			s.RegisterNotification(name, notificationAdapter(val, method, paramType))
			registered++
		}
	}
	if registered == 0 {
		return fmt.Errorf("rpc: %s has no methods with a recognized signature", typ)
	}
	return nil
}

type methodKind int

const (
	unrecognized methodKind = iota
	methodCall
	notification
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// classifyMethod checks a method against the recognized signatures.
func classifyMethod(method reflect.Method) (methodKind, reflect.Type) {
	ft := method.Func.Type()
	// receiver, ctx, params
	if ft.NumIn() != 3 || ft.In(1) != contextType {
		return unrecognized, nil
	}
	paramType := ft.In(2)

	switch ft.NumOut() {
	case 2:
		if ft.Out(1) != errorType {
			return unrecognized, nil
		}
		return methodCall, paramType
	case 0:
		return notification, paramType
	default:
		return unrecognized, nil
	}
}

// methodAdapter bridges JSON params and result around one typed method.
func methodAdapter(rcvr reflect.Value, method reflect.Method, paramType reflect.Type) dispatcher.MethodHandler {
	return func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
		paramValue, err := decodeParams(paramType, params)
		if err != nil {
			return nil, err
		}

		out := method.Func.Call([]reflect.Value{rcvr, reflect.ValueOf(ctx), paramValue})
		if !out[1].IsNil() {
			return nil, out[1].Interface().(error)
		}

		result, err := json.Marshal(out[0].Interface())
		if err != nil {
			return nil, rpcerror.Newf(rpcerror.InternalError, "cannot encode result: %v", err)
		}
		return result, nil
	}
}

// notificationAdapter bridges JSON params into one typed notification
// method. Undecodable params drop the notification; there is no response
// to carry the complaint.
func notificationAdapter(rcvr reflect.Value, method reflect.Method, paramType reflect.Type) dispatcher.NotificationHandler {
	return func(ctx context.Context, params json.RawMessage) {
		paramValue, err := decodeParams(paramType, params)
		if err != nil {
			return
		}
		method.Func.Call([]reflect.Value{rcvr, reflect.ValueOf(ctx), paramValue})
	}
}

func decodeParams(paramType reflect.Type, params json.RawMessage) (reflect.Value, error) {
	value := reflect.New(paramType)
	if params != nil {
		if err := json.Unmarshal(params, value.Interface()); err != nil {
			return reflect.Value{}, rpcerror.FromCode(rpcerror.InvalidParams).WithData(err.Error())
		}
	}
	return value.Elem(), nil
}

func marshalParams(args any) (json.RawMessage, error) {
	if args == nil {
		return nil, nil
	}
	params, err := json.Marshal(args)
	if err != nil {
		return nil, rpcerror.Newf(rpcerror.ClientError, "cannot encode params: %v", err)
	}
	return params, nil
}
