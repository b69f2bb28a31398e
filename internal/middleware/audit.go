package middleware

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang/glog"
	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/models"
)

var idRegex = regexp.MustCompile(`/(\d+)(?:/|$)`)

// auditEntity maps the first path segment under /api to an entity type
// and the table/column holding its display name.
type auditEntity struct {
	Type   string
	Table  string
	Column string
}

var auditEntities = map[string]auditEntity{
	"users":              {"user", "users", "name"},
	"groups":             {"group", "user_groups", "name"},
	"subscriptions":      {"subscription", "subscriptions", "name"},
	"purchases":          {"purchase", "purchases", "description"},
	"policies":           {"policy", "policies", "title"},
	"policy-versions":    {"policy_version", "policy_versions", "version_number"},
	"training":           {"training", "", ""},
	"attachments":        {"attachment", "attachments", "filename"},
	"compliance-links":   {"compliance_link", "", ""},
	"assets":             {"asset", "assets", "name"},
	"peripherals":        {"peripheral", "peripherals", "name"},
	"disposals":          {"disposal", "", ""},
	"software":           {"software", "software", "name"},
	"risks":              {"risk", "risks", "title"},
	"frameworks":         {"framework", "frameworks", "name"},
	"incidents":          {"incident", "security_incidents", "title"},
	"notifications":      {"notification", "", ""},
	"framework-controls": {"framework_control", "framework_controls", "name"},
}

// auditSkipPaths are mutating routes that are audited elsewhere or not at all.
var auditSkipPaths = []string{"/api/auth/login", "/api/auth/logout", "/health"}

// AuditLogger records successful mutating requests of authenticated users.
// It must run after AuthRequired.
func AuditLogger(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Skip non-modifying requests
		method := c.Method()
		if method == fiber.MethodGet || method == fiber.MethodHead || method == fiber.MethodOptions {
			return c.Next()
		}

		path := c.Path()
		for _, skip := range auditSkipPaths {
			if strings.HasPrefix(path, skip) {
				return c.Next()
			}
		}

		user := GetCurrentUser(c)
		entity, ok := entityFromPath(path)
		if user == nil || !ok {
			return c.Next()
		}
		ip := c.IP()
		userAgent := c.Get(fiber.HeaderUserAgent)
		entityID := extractIDFromPath(path)

		// Capture JSON request body for POST/PUT (to get entity name)
		var requestBody []byte
		if method != fiber.MethodDelete && strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEApplicationJSON) {
			requestBody = append([]byte(nil), c.Body()...)
		}

		// For DELETE, capture entity name BEFORE deletion
		var nameBeforeDelete string
		if method == fiber.MethodDelete && entityID != 0 {
			nameBeforeDelete = entityName(db, entity, entityID)
		}

		err := c.Next()

		// Only log successful responses
		status := c.Response().StatusCode()
		if err != nil || status < 200 || status >= 400 {
			return err
		}

		action := actionFor(method)
		name := nameBeforeDelete
		switch {
		case name != "":
		case action == models.AuditActionCreate && len(requestBody) > 0 && entityID == 0:
			name = nameFromBody(requestBody)
		case entityID != 0:
			name = entityName(db, entity, entityID)
		}

		RecordAudit(db, c, models.AuditLog{
			Action:      action,
			EntityType:  entity.Type,
			EntityID:    entityID,
			EntityName:  name,
			Description: describe(action, entity.Type, path, name),
			IPAddress:   ip,
			UserAgent:   userAgent,
		})
		return nil
	}
}

// RecordAudit stores entry on behalf of the current user. Failures are
// logged and never fail the request.
func RecordAudit(db *gorm.DB, c *fiber.Ctx, entry models.AuditLog) {
	user := GetCurrentUser(c)
	if user == nil {
		return
	}
	entry.UserID = user.ID
	entry.UserName = user.Name
	entry.Role = user.Role
	if entry.IPAddress == "" {
		entry.IPAddress = c.IP()
	}
	if entry.UserAgent == "" {
		entry.UserAgent = c.Get(fiber.HeaderUserAgent)
	}
	if err := db.Create(&entry).Error; err != nil {
		glog.Warningf("Audit: failed to record %s %s: %v", entry.Action, entry.EntityType, err)
	}
}

func actionFor(method string) models.AuditAction {
	switch method {
	case fiber.MethodPut, fiber.MethodPatch:
		return models.AuditActionUpdate
	case fiber.MethodDelete:
		return models.AuditActionDelete
	}
	return models.AuditActionCreate
}

func entityFromPath(path string) (auditEntity, bool) {
	parts := strings.Split(strings.TrimPrefix(path, "/api/"), "/")
	if len(parts) == 0 {
		return auditEntity{}, false
	}
	e, ok := auditEntities[parts[0]]
	return e, ok
}

// extractIDFromPath gets the first numeric ID from a URL path
func extractIDFromPath(path string) uint {
	matches := idRegex.FindStringSubmatch(path)
	if len(matches) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(matches[1], 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

// entityName looks up the entity's display name, falling back to "#id".
func entityName(db *gorm.DB, e auditEntity, id uint) string {
	if e.Table != "" {
		var names []string
		if db.Table(e.Table).Where("id = ?", id).Limit(1).Pluck(e.Column, &names).Error == nil && len(names) > 0 && names[0] != "" {
			return names[0]
		}
	}
	return "#" + strconv.FormatUint(uint64(id), 10)
}

// nameFromBody extracts a display name from a JSON request body.
func nameFromBody(body []byte) string {
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return ""
	}
	for _, field := range []string{"name", "title", "description", "version_number"} {
		if s, ok := data[field].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// describe builds a human-readable summary of the call.
func describe(action models.AuditAction, entityType, path, name string) string {
	quoted := ""
	if name != "" && !strings.HasPrefix(name, "#") {
		quoted = " \"" + name + "\""
	} else if name != "" {
		quoted = " " + name
	}

	// Named sub-actions read better than the generic verb.
	switch {
	case strings.HasSuffix(path, "/checkout"):
		return "Checked out " + entityType + quoted
	case strings.HasSuffix(path, "/checkin"):
		return "Checked in " + entityType + quoted
	case strings.HasSuffix(path, "/unvalidate"):
		return "Un-validated cost of " + entityType + quoted
	case strings.HasSuffix(path, "/validate"):
		return "Validated cost of " + entityType + quoted
	case strings.HasSuffix(path, "/activate"):
		return "Activated " + entityType + quoted
	case strings.HasSuffix(path, "/acknowledge"):
		return "Acknowledged " + entityType + quoted
	case strings.HasSuffix(path, "/unarchive"):
		return "Restored " + entityType + quoted
	case strings.HasSuffix(path, "/archive"):
		return "Archived " + entityType + quoted
	}

	verbs := map[models.AuditAction]string{
		models.AuditActionCreate: "Created",
		models.AuditActionUpdate: "Updated",
		models.AuditActionDelete: "Deleted",
	}
	return verbs[action] + " " + entityType + quoted
}
