// Package alerts evaluates threshold rules against every stored reading and
// delivers firing and resolved notifications to Slack, Teams or plain HTTP
// webhooks.
package alerts
