// Package remote exposes an engine over gRPC. The service is described by an
// embedded .proto file parsed at start-up; requests and replies are dynamic
// messages built from that schema, so there is no generated code.
package remote

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/smeli-lang/smeli-sub000/internal/config"
)

//go:embed remote.proto
var schemaSource string

var loadService = sync.OnceValues(func() (*desc.ServiceDescriptor, error) {
	parser := protoparse.Parser{
		Accessor: protoparse.FileContentsFromMap(map[string]string{
			config.RemoteProtoFile: schemaSource,
		}),
	}
	fds, err := parser.ParseFiles(config.RemoteProtoFile)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", config.RemoteProtoFile, err)
	}
	sd := fds[0].FindService(config.RemoteServiceName)
	if sd == nil {
		return nil, fmt.Errorf("service %s not found in %s", config.RemoteServiceName, config.RemoteProtoFile)
	}
	return sd, nil
})

// Service returns the descriptor of the remote-control service.
func Service() (*desc.ServiceDescriptor, error) {
	return loadService()
}

func methodPath(md *desc.MethodDescriptor) string {
	return "/" + md.GetService().GetFullyQualifiedName() + "/" + md.GetName()
}

// fields is the Go view of a message: scalars as int, string or bool,
// repeated messages as []fields.
type fields map[string]interface{}

func toMessage(md *desc.MessageDescriptor, in fields) (*dynamic.Message, error) {
	msg := dynamic.NewMessage(md)
	for name, val := range in {
		fd := md.FindFieldByName(name)
		if fd == nil {
			return nil, fmt.Errorf("%s has no field %s", md.GetName(), name)
		}
		if fd.IsRepeated() {
			items, ok := val.([]fields)
			if !ok {
				return nil, fmt.Errorf("field %s: expected a list of messages, got %T", name, val)
			}
			for _, item := range items {
				v, err := toMessage(fd.GetMessageType(), item)
				if err != nil {
					return nil, fmt.Errorf("field %s: %w", name, err)
				}
				if err := msg.TryAddRepeatedField(fd, v); err != nil {
					return nil, err
				}
			}
			continue
		}
		v, err := toProtoValue(fd, val)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		if err := msg.TrySetField(fd, v); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

func toProtoValue(fd *desc.FieldDescriptor, val interface{}) (interface{}, error) {
	switch fd.GetType() {
	case descriptorpb.FieldDescriptorProto_TYPE_INT32:
		if i, ok := val.(int); ok {
			return int32(i), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_INT64:
		if i, ok := val.(int); ok {
			return int64(i), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_BOOL:
		if b, ok := val.(bool); ok {
			return b, nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_STRING:
		if s, ok := val.(string); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("cannot store %T in a %v field", val, fd.GetType())
}

func fromMessage(msg *dynamic.Message) fields {
	out := fields{}
	for _, fd := range msg.GetMessageDescriptor().GetFields() {
		val := msg.GetField(fd)
		if fd.IsRepeated() {
			var items []fields
			list, _ := val.([]interface{})
			for _, item := range list {
				if m, ok := item.(*dynamic.Message); ok {
					items = append(items, fromMessage(m))
				}
			}
			out[fd.GetName()] = items
			continue
		}
		switch v := val.(type) {
		case int32:
			out[fd.GetName()] = int(v)
		case int64:
			out[fd.GetName()] = int(v)
		default:
			out[fd.GetName()] = v
		}
	}
	return out
}

func (f fields) getInt(name string) int {
	i, _ := f[name].(int)
	return i
}

func (f fields) getString(name string) string {
	s, _ := f[name].(string)
	return s
}

func (f fields) getList(name string) []fields {
	l, _ := f[name].([]fields)
	return l
}
