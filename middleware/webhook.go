package middleware

import (
	"crypto/sha1"
	"encoding/hex"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

// WebhookAuth verifies the gateway webhook signature, skips check in
// sandbox/dev mode. The signature is the SHA1 of the secret and the
// transaction fields joined with colons, in the gateway's documented order.
func WebhookAuth() gin.HandlerFunc {
	secretKey := os.Getenv("PAYGATE_WEBHOOK_SECRET")
	if secretKey == "" {
		panic("PAYGATE_WEBHOOK_SECRET is not set")
	}

	mode := strings.ToLower(os.Getenv("PAYGATE_MODE"))

	return func(c *gin.Context) {
		if mode == "sandbox" || mode == "dev" {
			log.Println("Sandbox/dev mode: skipping webhook signature verification")
			c.Next()
			return
		}

		if err := c.Request.ParseForm(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to parse form for signature verification"})
			c.Abort()
			return
		}

		providedCheck := c.PostForm("tran_check")
		if providedCheck == "" {
			c.JSON(http.StatusForbidden, gin.H{"error": "missing tran_check signature"})
			c.Abort()
			return
		}

		fieldList := []string{
			"tran_store", "tran_type", "tran_test", "tran_ref",
			"tran_cartid", "tran_currency", "tran_amount", "tran_status",
		}

		parts := []string{secretKey}
		for _, f := range fieldList {
			parts = append(parts, strings.TrimSpace(c.PostForm(f)))
		}

		h := sha1.New()
		h.Write([]byte(strings.Join(parts, ":")))
		calculated := hex.EncodeToString(h.Sum(nil))

		if !strings.EqualFold(calculated, providedCheck) {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid webhook signature"})
			c.Abort()
			return
		}

		c.Next()
	}
}
