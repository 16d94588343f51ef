package logger_test

import (
	"testing"

	"github.com/tak-lang/tak/internal/logger"
)

func TestDeferLogCollectsInStableOrder(t *testing.T) {
	log := logger.NewDeferLog()
	source := &logger.Source{Contents: "a b c\n"}

	log.AddError(source, logger.Loc{Start: 4}, "second")
	log.AddError(source, logger.Loc{Start: 0}, "first")

	msgs := log.Done()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Data.Text != "first" || msgs[1].Data.Text != "second" {
		t.Fatalf("expected messages sorted by source position, got %q then %q", msgs[0].Data.Text, msgs[1].Data.Text)
	}
	if !log.HasErrors() {
		t.Fatalf("expected HasErrors to be true")
	}
}

func TestMessageCarriesCaretLocation(t *testing.T) {
	source := &logger.Source{PrettyPath: "main.tak", Contents: "x := *x;\n"}
	log := logger.NewDeferLog()
	log.AddError(source, logger.Loc{Start: 5}, "cannot dereference non-pointer type i32")

	msgs := log.Done()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	loc := msgs[0].Data.Location
	if loc == nil {
		t.Fatalf("expected a location to be attached")
	}
	if loc.Line != 1 {
		t.Fatalf("expected line 1, got %d", loc.Line)
	}
}
