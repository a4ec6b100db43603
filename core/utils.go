package core

import (
	"reflect"

	"github.com/encodeous/kevlar/state"
)

func Get[T state.KevModule](s *state.State) T {
	t := reflect.TypeOf((*T)(nil)).Elem()
	return s.Modules[t.String()].(T)
}
