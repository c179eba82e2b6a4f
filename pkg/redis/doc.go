// Package redis connects to Redis with github.com/redis/go-redis/v9 and
// provides a lease-based Locker.
//
// Connect retries until the server answers a ping. Locker acquires a key
// with SET NX PX holding a random token and releases it through a Lua
// script that only deletes the key if the token still matches, so an expired
// owner cannot drop a lease that has moved on. Healthcheck returns a ping
// closure for readiness probes.
//
//	client, err := redis.Connect(ctx, cfg)
//	locker := redis.NewLocker(client, redis.WithKeyPrefix(cfg.KeyPrefix))
//
//	release, err := locker.Lock(ctx, "prime_contract:pc-1")
//	if err != nil {
//		return err
//	}
//	defer release(ctx)
package redis
