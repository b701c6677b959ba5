package database

import (
	"errors"
	"testing"

	"products-api/internal/config"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestPool_AfterReleaseRetiresAfterMaxUses(t *testing.T) {
	p := newPool(config.DatabaseConfig{MaxUsesPerConnection: 3}, zap.NewNop())
	conn := new(pgx.Conn)

	assert.True(t, p.afterRelease(conn))
	assert.True(t, p.afterRelease(conn))
	assert.False(t, p.afterRelease(conn), "third release should retire the connection")

	// A retired connection's counter is cleared.
	assert.NotContains(t, p.uses, conn)
}

func TestPool_AfterReleaseCountsPerConnection(t *testing.T) {
	p := newPool(config.DatabaseConfig{MaxUsesPerConnection: 2}, zap.NewNop())
	a, b := new(pgx.Conn), new(pgx.Conn)

	assert.True(t, p.afterRelease(a))
	assert.True(t, p.afterRelease(b))
	assert.False(t, p.afterRelease(a))
	assert.False(t, p.afterRelease(b))
}

func TestPool_AfterReleaseUnlimited(t *testing.T) {
	p := newPool(config.DatabaseConfig{MaxUsesPerConnection: 0}, zap.NewNop())
	conn := new(pgx.Conn)

	for i := 0; i < 10000; i++ {
		if !p.afterRelease(conn) {
			t.Fatalf("connection retired after %d uses with no limit", i+1)
		}
	}
	assert.Empty(t, p.uses)
}

func TestPool_BeforeCloseForgetsConnection(t *testing.T) {
	p := newPool(config.DatabaseConfig{MaxUsesPerConnection: 5}, zap.NewNop())
	conn := new(pgx.Conn)

	p.afterRelease(conn)
	assert.Contains(t, p.uses, conn)

	p.beforeClose(conn)
	assert.NotContains(t, p.uses, conn)
}

func TestPool_UncountedReleasesKeepTheBudget(t *testing.T) {
	p := newPool(config.DatabaseConfig{MaxUsesPerConnection: 2}, zap.NewNop())
	conn := new(pgx.Conn)

	for i := 0; i < 10; i++ {
		p.markUncounted(conn)
		assert.True(t, p.afterRelease(conn))
	}
	assert.NotContains(t, p.uses, conn)
	assert.Empty(t, p.uncounted)

	assert.True(t, p.afterRelease(conn))
	assert.False(t, p.afterRelease(conn), "second counted release should retire the connection")
}

func TestPool_UncountedWithoutLimit(t *testing.T) {
	p := newPool(config.DatabaseConfig{MaxUsesPerConnection: 0}, zap.NewNop())
	conn := new(pgx.Conn)

	p.markUncounted(conn)
	assert.True(t, p.afterRelease(conn))
	assert.Empty(t, p.uncounted)
}

func TestPool_BeforeCloseForgetsUncountedMark(t *testing.T) {
	p := newPool(config.DatabaseConfig{MaxUsesPerConnection: 5}, zap.NewNop())
	conn := new(pgx.Conn)

	p.markUncounted(conn)
	p.beforeClose(conn)
	assert.Empty(t, p.uncounted)
}

func TestPool_HandleIdleError(t *testing.T) {
	tests := []struct {
		name        string
		exitOnError bool
		wantExit    bool
	}{
		{name: "report only", exitOnError: false, wantExit: false},
		{name: "fail fast", exitOnError: true, wantExit: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)

			exitCode := -1
			p := newPool(
				config.DatabaseConfig{ExitOnIdleError: tt.exitOnError},
				zap.New(core),
				WithExitFunc(func(code int) { exitCode = code }),
			)

			p.HandleIdleError(errors.New("terminating connection due to administrator command"))

			assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
			if tt.wantExit {
				assert.Equal(t, 1, exitCode)
				assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
			} else {
				assert.Equal(t, -1, exitCode)
			}
		})
	}
}
