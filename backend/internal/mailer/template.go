package mailer

import (
	"fmt"
	"strings"
)

// wrapTemplate puts a body fragment inside the shared mail shell.
func wrapTemplate(body string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
  <body style="margin:0;padding:0;background-color:#f4f4f4;font-family:Arial,sans-serif;">
    <table role="presentation" width="100%%" cellpadding="0" cellspacing="0">
      <tr>
        <td align="center" style="padding:24px;">
          <table role="presentation" width="600" cellpadding="0" cellspacing="0"
                 style="background-color:#ffffff;border-radius:6px;">
            <tr>
              <td style="padding:20px;line-height:1.8;">%s</td>
            </tr>
          </table>
        </td>
      </tr>
    </table>
  </body>
</html>`, body)
}

// parseDevice maps a user agent to a coarse device label for the admin
// activity mail.
func parseDevice(userAgent string) string {
	if userAgent == "" {
		return "unknown"
	}
	lowered := strings.ToLower(userAgent)
	switch {
	case strings.Contains(lowered, "mobile"):
		return "mobile"
	case strings.Contains(lowered, "android"):
		return "android"
	case strings.Contains(lowered, "iphone"), strings.Contains(lowered, "ipad"):
		return "ios"
	case strings.Contains(lowered, "windows"):
		return "windows"
	case strings.Contains(lowered, "mac os"):
		return "mac"
	case strings.Contains(lowered, "linux"):
		return "linux"
	default:
		return "unknown"
	}
}
