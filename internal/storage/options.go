package storage

import "time"

type Option func(c *Client)

func ConnAttempts(attempts int) Option {
	return func(c *Client) {
		c.connAttempts = attempts
	}
}

func ConnTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.connTimeout = timeout
	}
}

func Region(region string) Option {
	return func(c *Client) {
		c.region = region
	}
}

// path-style addressing is what self-hosted S3 implementations expect
func UsePathStyle(use bool) Option {
	return func(c *Client) {
		c.usePathStyle = use
	}
}
