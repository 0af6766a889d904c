package di

import (
	"strings"
	"testing"

	"FinCast/internal/domain/repository"
)

func TestCandleSchemaCoversEveryTimeframe(t *testing.T) {
	stmts := candleSchemaStatements("fincast", "candles")

	if want := 1 + len(repository.AllTimeframes()); len(stmts) != want {
		t.Fatalf("expected %d statements, got %d", want, len(stmts))
	}
	if !strings.Contains(stmts[0], "CREATE DATABASE IF NOT EXISTS fincast") {
		t.Fatalf("first statement should create the database, got %q", stmts[0])
	}
	for _, tf := range repository.AllTimeframes() {
		table := "candles_" + string(tf)
		found := false
		for _, s := range stmts[1:] {
			if strings.Contains(s, "CREATE TABLE IF NOT EXISTS "+table+" ") {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("no table statement for timeframe %s", tf)
		}
	}
}
