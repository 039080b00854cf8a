package evstream

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"
)

// Options configures an Assembler. The zero value is not valid; start from
// DefaultOptions or LoadConfig.
type Options struct {
	// MaxFrameSize is the largest accepted declared body length.
	MaxFrameSize uint32 `yaml:"max_frame_size"`
	// MaxDepth bounds nested klass recursion.
	MaxDepth int `yaml:"max_depth"`
	// Redefine is the registry policy for klass redefinitions.
	Redefine RedefinePolicy `yaml:"redefine"`
	// ByteOrder is "little" (default) or "big".
	ByteOrder string `yaml:"byte_order"`
	// StringPrefixWidth is the width of string and byte-string length prefixes: 1, 2 or 4.
	StringPrefixWidth int `yaml:"string_prefix_width"`
	// FailFast turns every frame-local error into a fatal one.
	FailFast bool `yaml:"fail_fast"`
	// EmitMetadata makes successful metadata frames produce an Item.
	EmitMetadata bool `yaml:"emit_metadata"`
	// Klasses are registered before the first frame is read.
	Klasses []Klass `yaml:"klasses"`

	// Logger receives decode diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger `yaml:"-"`

	order binary.ByteOrder
}

// Option mutates Options.
type Option func(*Options)

// DefaultOptions returns the format version 1 defaults.
func DefaultOptions() Options {
	return Options{
		MaxFrameSize:      DefaultMaxFrameSize,
		MaxDepth:          DefaultMaxDepth,
		Redefine:          RedefineReplace,
		ByteOrder:         "little",
		StringPrefixWidth: DefaultPrefixWidth,
	}
}

func WithMaxFrameSize(n uint32) Option           { return func(o *Options) { o.MaxFrameSize = n } }
func WithMaxDepth(n int) Option                  { return func(o *Options) { o.MaxDepth = n } }
func WithRedefinePolicy(p RedefinePolicy) Option { return func(o *Options) { o.Redefine = p } }
func WithByteOrder(name string) Option           { return func(o *Options) { o.ByteOrder = name } }
func WithStringPrefixWidth(n int) Option         { return func(o *Options) { o.StringPrefixWidth = n } }
func WithFailFast(on bool) Option                { return func(o *Options) { o.FailFast = on } }
func WithEmitMetadata(on bool) Option            { return func(o *Options) { o.EmitMetadata = on } }
func WithLogger(l *zap.Logger) Option            { return func(o *Options) { o.Logger = l } }

// WithKlasses preloads klass definitions.
func WithKlasses(klasses ...Klass) Option {
	return func(o *Options) { o.Klasses = append(o.Klasses, klasses...) }
}

// WithOptions replaces the whole option set, typically with one from LoadConfig.
func WithOptions(opts Options) Option {
	return func(o *Options) { *o = opts }
}

// Validate checks ranges and resolves derived settings.
func (o *Options) Validate() error {
	if o.MaxFrameSize == 0 {
		return fmt.Errorf("%w: max_frame_size must be positive", ErrInvalidOption)
	}
	if o.MaxDepth < 1 {
		return fmt.Errorf("%w: max_depth must be at least 1, got %d", ErrInvalidOption, o.MaxDepth)
	}
	switch o.StringPrefixWidth {
	case 1, 2, 4:
	default:
		return fmt.Errorf("%w: string_prefix_width must be 1, 2 or 4, got %d", ErrInvalidOption, o.StringPrefixWidth)
	}
	if o.Redefine > RedefineKeep {
		return fmt.Errorf("%w: redefine policy %d", ErrInvalidOption, o.Redefine)
	}
	order, ok := byteOrderName(o.ByteOrder)
	if !ok {
		return fmt.Errorf("%w: byte_order %q", ErrInvalidOption, o.ByteOrder)
	}
	o.order = order
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return nil
}

// cursor returns a cursor over b configured for these options.
func (o *Options) cursor(b []byte) *Cursor {
	c := NewCursor(b).WithPrefixWidth(o.StringPrefixWidth)
	if o.order != nil {
		c.WithByteOrder(o.order)
	}
	return c
}
