// Package qrcode renders otpauth provisioning URIs as QR code images so
// admins can enroll an authenticator app by scanning instead of typing the
// secret by hand.
package qrcode
