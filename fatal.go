package loaddump

import (
	"fmt"

	"go.uber.org/zap"
)

// FatalError describes a condition that correct code reading uncorrupted input
// never reaches: dumping or loading a variant declared with Never, or loading a
// union tag outside the declared variants. It is never returned through the
// error channel. The engine panics with it, which terminates the process unless
// the caller opted in to Guard.
type FatalError struct {
	Type    string
	Variant string // empty for an out-of-range tag
	Tag     uint32
	Msg     string
}

func (e *FatalError) Error() string { return e.Msg }

func raise(e *FatalError) {
	Logger().Error("loaddump: fatal condition",
		zap.String("type", e.Type),
		zap.String("variant", e.Variant),
		zap.Uint32("tag", e.Tag),
		zap.String("reason", e.Msg),
	)
	panic(e)
}

func fatalNeverDump(typ, variant string, tag uint32, msg string) {
	raise(&FatalError{
		Type: typ, Variant: variant, Tag: tag,
		Msg: fmt.Sprintf("%s::%s cannot be dumped: %s", typ, variant, msg),
	})
}

func fatalNeverLoad(typ, variant string, tag uint32, msg string) {
	raise(&FatalError{
		Type: typ, Variant: variant, Tag: tag,
		Msg: fmt.Sprintf("%s::%s cannot be loaded: %s", typ, variant, msg),
	})
}

func fatalTag(typ string, tag uint32) {
	raise(&FatalError{
		Type: typ, Tag: tag,
		Msg: fmt.Sprintf("%d is out of %s variant range", tag, typ),
	})
}

// Guard runs fn and converts a *FatalError panic raised inside it into a
// returned error. Any other panic propagates unchanged. Use it at the boundary
// where input is untrusted and a corrupt tag must not take the process down.
func Guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			fe, ok := r.(*FatalError)
			if !ok {
				panic(r)
			}
			err = fe
		}
	}()
	return fn()
}
