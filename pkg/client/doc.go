/*
Package client is the HTTP client for the appliance inventory API.

It lists appliances page by page and issues drain and remediate calls. Every
call is retried with exponential backoff through package retry: listing gets
five attempts, drain and remediate get three. A 404 on drain or remediate is
reported as ErrNotFound immediately, without retries, because the appliance
has been removed from the inventory.

# Usage

	cfg := client.DefaultConfig()
	cfg.BaseURL = "https://inventory.example.com"
	cfg.ActorEmail = "sentinel@example.com"

	c, err := client.NewClient(cfg)
	if err != nil {
		return err
	}

	page, err := c.ListAppliances(ctx, "", 100)

Each attempt is bounded by Config.Timeout. When RequestsPerSecond is set, a
token bucket limiter from golang.org/x/time/rate is shared by all calls.
*/
package client
