// Package mail notifies operators about newly created escalations over
// SMTP. Delivery is asynchronous through a retrying queue so the broker's
// create path never waits on a mail server.
package mail
