package framegen

import (
	"fmt"

	"github.com/oy3o/evstream"
)

// Sample klasses modelled on a tracing library's built-in events.
var (
	BaseEvent = evstream.Klass{ID: 10, Name: "HT_Event", Fields: []evstream.FieldDescriptor{
		{Name: "type", Type: evstream.TypeUint32},
		{Name: "timestamp", Type: evstream.TypeUint64},
		{Name: "id", Type: evstream.TypeUint64},
	}}
	CallstackEvent = evstream.Klass{ID: 11, Name: "HT_CallstackStringEvent", Fields: []evstream.FieldDescriptor{
		{Name: "base", Type: evstream.TypeKlass},
		{Name: "duration", Type: evstream.TypeUint64},
		{Name: "thread_id", Type: evstream.TypeUint32},
		{Name: "label", Type: evstream.TypeString},
	}}
	SystemInfoEvent = evstream.Klass{ID: 12, Name: "HT_SystemInfoEvent", Fields: []evstream.FieldDescriptor{
		{Name: "base", Type: evstream.TypeKlass},
		{Name: "version", Type: evstream.TypeUint8},
		{Name: "cpu_load", Type: evstream.TypeFloat32},
		{Name: "uuid", Type: evstream.TypeArray, Width: 16},
		{Name: "payload", Type: evstream.TypeBytes},
	}}
)

// Base builds the nested base event shared by every sample event.
func Base(typ uint32, ts, id uint64) evstream.Value {
	return evstream.Nested(evstream.Event{
		KlassID: BaseEvent.ID,
		Klass:   BaseEvent.Name,
		Fields: []evstream.Field{
			{Name: "type", Value: evstream.Uint32(typ)},
			{Name: "timestamp", Value: evstream.Uint64(ts)},
			{Name: "id", Value: evstream.Uint64(id)},
		},
	})
}

// Sample writes the sample klasses followed by n events alternating
// between callstack and system info events.
func Sample(e *Encoder, n int) *Encoder {
	e.Metadata(BaseEvent).Metadata(CallstackEvent).Metadata(SystemInfoEvent)
	uuid := make([]byte, 16)
	for i := 0; i < n; i++ {
		ts := uint64(1_000_000 + i*250)
		if i%2 == 0 {
			e.Event(CallstackEvent,
				Base(CallstackEvent.ID, ts, uint64(i)),
				evstream.Uint64(uint64(100+i%17)),
				evstream.Uint32(uint32(1+i%4)),
				evstream.String(fmt.Sprintf("frame_%d", i%32)),
			)
			continue
		}
		uuid[i%16]++
		e.Event(SystemInfoEvent,
			Base(SystemInfoEvent.ID, ts, uint64(i)),
			evstream.Uint8(1),
			evstream.Float32(float32(i%100)/100),
			evstream.Array(append([]byte(nil), uuid...)),
			evstream.Bytes([]byte{byte(i), byte(i >> 8)}),
		)
	}
	return e
}
