package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ApplyEnv overrides fields from GRAPHVIEW_* variables. Unset variables leave
// the current value alone; malformed ones are an error.
func (c *Config) ApplyEnv() error {
	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	setString(&c.Server.Addr, "ADDR")
	note(setDuration(&c.Server.ReadTimeout, "READ_TIMEOUT"))
	note(setDuration(&c.Server.WriteTimeout, "WRITE_TIMEOUT"))
	note(setDuration(&c.Server.ShutdownTimeout, "SHUTDOWN_TIMEOUT"))
	note(setDuration(&c.Server.FinalFrameTimeout, "FINAL_FRAME_TIMEOUT"))
	note(setFloat(&c.Server.LayoutStartsPerSecond, "LAYOUT_STARTS_PER_SECOND"))
	note(setInt(&c.Server.LayoutStartBurst, "LAYOUT_START_BURST"))
	note(setInt(&c.Server.MaxActiveSessions, "MAX_ACTIVE_SESSIONS"))
	note(setInt64(&c.Server.MaxBodyBytes, "MAX_BODY_BYTES"))
	note(setDuration(&c.Server.SessionRetention, "SESSION_RETENTION"))
	note(setInt(&c.Server.MaxRetainedSessions, "MAX_RETAINED_SESSIONS"))

	setString(&c.Store.Driver, "STORE_DRIVER")
	setString(&c.Store.Path, "STORE_PATH")
	setString(&c.Store.DSN, "STORE_DSN")
	note(setBool(&c.Store.Compress, "STORE_COMPRESS"))
	setString(&c.Store.S3.Bucket, "S3_BUCKET")
	setString(&c.Store.S3.Prefix, "S3_PREFIX")
	setString(&c.Store.S3.Region, "S3_REGION")
	setString(&c.Store.S3.Endpoint, "S3_ENDPOINT")
	setString(&c.Store.S3.AccessKeyID, "S3_ACCESS_KEY_ID")
	setString(&c.Store.S3.SecretAccessKey, "S3_SECRET_ACCESS_KEY")

	note(setFloat(&c.Layout.RepulsionConstant, "LAYOUT_REPULSION"))
	note(setFloat(&c.Layout.IdealLength, "LAYOUT_IDEAL_LENGTH"))
	note(setFloat(&c.Layout.SpringConstant, "LAYOUT_SPRING"))
	note(setFloat(&c.Layout.GravityConstant, "LAYOUT_GRAVITY"))
	note(setFloat(&c.Layout.VelocityClamp, "LAYOUT_VELOCITY_CLAMP"))
	note(setFloat(&c.Layout.ConvergenceThreshold, "LAYOUT_CONVERGENCE_THRESHOLD"))
	note(setInt(&c.Layout.MaxIterations, "LAYOUT_MAX_ITERATIONS"))
	note(setInt(&c.Layout.FrameRate, "LAYOUT_FRAME_RATE"))

	note(setFloat(&c.Builder.Width, "BUILDER_WIDTH"))
	note(setFloat(&c.Builder.Height, "BUILDER_HEIGHT"))
	note(setInt64(&c.Builder.Seed, "BUILDER_SEED"))
	note(setInt(&c.Builder.DecodeWorkers, "BUILDER_DECODE_WORKERS"))

	note(setBool(&c.Transport.Enabled, "TRANSPORT_ENABLED"))
	setString(&c.Transport.Addr, "TRANSPORT_ADDR")

	setString(&c.Log.Level, "LOG_LEVEL")
	return firstErr
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	return v, ok && v != ""
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	*dst = d
	return nil
}

func setFloat(dst *float64, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	*dst = f
	return nil
}

func setInt(dst *int, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	*dst = b
	return nil
}
