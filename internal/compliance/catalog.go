// Package compliance implements the hierarchical compliance assessment
// engine: a static standards catalog, an injectable check capability, a
// sequential assessment runner with bottom-up score aggregation, and
// findings/recommendations reporting.
package compliance

import (
	"github.com/cyberguard-project/cyberguard/internal/core"
)

// Standard is a regulatory framework: an ordered list of requirements.
type Standard struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Version      string        `json:"version"`
	Description  string        `json:"description"`
	Requirements []Requirement `json:"requirements"`
}

// Requirement is a control area within a standard: an ordered list of
// atomic check ids. Checks are leaf identifiers, not objects.
type Requirement struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Category    string        `json:"category"`
	Severity    core.Severity `json:"severity"`
	Checks      []string      `json:"checks"`
}

// DefaultStandards returns the built-in compliance catalog in assessment
// order: PCI_DSS, GDPR, SOC2, HIPAA.
func DefaultStandards() []Standard {
	return []Standard{
		{
			ID:          "PCI_DSS",
			Name:        "Payment Card Industry Data Security Standard",
			Version:     "4.0",
			Description: "Security standards for organizations handling credit card data",
			Requirements: []Requirement{
				{
					ID:          "PCI_1_1",
					Title:       "Install and maintain network security controls",
					Description: "Firewalls and router configuration standards",
					Category:    "Network Security",
					Severity:    core.SeverityHigh,
					Checks:      []string{"firewall_configured", "default_passwords_changed", "unnecessary_services_disabled"},
				},
				{
					ID:          "PCI_2_1",
					Title:       "Apply secure configurations to all system components",
					Description: "Configuration standards for all system components",
					Category:    "System Configuration",
					Severity:    core.SeverityHigh,
					Checks:      []string{"secure_configurations_applied", "vendor_defaults_removed", "configuration_hardening"},
				},
				{
					ID:          "PCI_3_1",
					Title:       "Protect stored cardholder data",
					Description: "Data encryption and storage requirements",
					Category:    "Data Protection",
					Severity:    core.SeverityCritical,
					Checks:      []string{"data_encryption_at_rest", "key_management", "cardholder_data_inventory"},
				},
				{
					ID:          "PCI_4_1",
					Title:       "Protect cardholder data with strong cryptography during transmission",
					Description: "Encryption requirements for data in transit",
					Category:    "Data Transmission",
					Severity:    core.SeverityCritical,
					Checks:      []string{"data_encryption_in_transit", "tls_configuration", "wireless_encryption"},
				},
				{
					ID:          "PCI_8_1",
					Title:       "Identify users and authenticate access to system components",
					Description: "User identification and authentication requirements",
					Category:    "Access Control",
					Severity:    core.SeverityHigh,
					Checks:      []string{"unique_user_ids", "strong_authentication", "multi_factor_authentication"},
				},
			},
		},
		{
			ID:          "GDPR",
			Name:        "General Data Protection Regulation",
			Version:     "2018",
			Description: "EU regulation for data protection and privacy",
			Requirements: []Requirement{
				{
					ID:          "GDPR_ART_25",
					Title:       "Data protection by design and by default",
					Description: "Privacy by design implementation",
					Category:    "Privacy Design",
					Severity:    core.SeverityHigh,
					Checks:      []string{"privacy_by_design", "data_minimization", "purpose_limitation"},
				},
				{
					ID:          "GDPR_ART_32",
					Title:       "Security of processing",
					Description: "Technical and organizational security measures",
					Category:    "Data Security",
					Severity:    core.SeverityHigh,
					Checks:      []string{"encryption_pseudonymization", "data_integrity_confidentiality", "security_testing_assessment"},
				},
				{
					ID:          "GDPR_ART_33",
					Title:       "Notification of personal data breach",
					Description: "Data breach notification requirements",
					Category:    "Incident Response",
					Severity:    core.SeverityCritical,
					Checks:      []string{"breach_detection_capability", "notification_procedures", "breach_documentation"},
				},
				{
					ID:          "GDPR_ART_35",
					Title:       "Data protection impact assessment",
					Description: "DPIA requirements for high-risk processing",
					Category:    "Risk Assessment",
					Severity:    core.SeverityMedium,
					Checks:      []string{"dpia_conducted", "risk_assessment_documented", "mitigation_measures_implemented"},
				},
			},
		},
		{
			ID:          "SOC2",
			Name:        "Service Organization Control 2",
			Version:     "Type II",
			Description: "Auditing standard for service organizations",
			Requirements: []Requirement{
				{
					ID:          "SOC2_SEC_1",
					Title:       "Security - Logical and Physical Access Controls",
					Description: "Access control implementation and monitoring",
					Category:    "Security",
					Severity:    core.SeverityHigh,
					Checks:      []string{"access_control_policies", "user_access_reviews", "privileged_access_management"},
				},
				{
					ID:          "SOC2_SEC_2",
					Title:       "Security - System Operations",
					Description: "System operation monitoring and management",
					Category:    "Operations",
					Severity:    core.SeverityHigh,
					Checks:      []string{"system_monitoring", "incident_response_procedures", "change_management"},
				},
				{
					ID:          "SOC2_AVAIL_1",
					Title:       "Availability - System Availability",
					Description: "System availability monitoring and management",
					Category:    "Availability",
					Severity:    core.SeverityMedium,
					Checks:      []string{"availability_monitoring", "backup_procedures", "disaster_recovery_planning"},
				},
				{
					ID:          "SOC2_CONF_1",
					Title:       "Confidentiality - Information Classification",
					Description: "Information classification and handling",
					Category:    "Confidentiality",
					Severity:    core.SeverityHigh,
					Checks:      []string{"data_classification", "confidential_data_handling", "information_disposal"},
				},
			},
		},
		{
			ID:          "HIPAA",
			Name:        "Health Insurance Portability and Accountability Act",
			Version:     "2013",
			Description: "US healthcare data protection regulation",
			Requirements: []Requirement{
				{
					ID:          "HIPAA_164_312_A",
					Title:       "Administrative Safeguards",
					Description: "Administrative procedures for PHI protection",
					Category:    "Administrative",
					Severity:    core.SeverityHigh,
					Checks:      []string{"security_officer_assigned", "workforce_training", "information_access_management"},
				},
				{
					ID:          "HIPAA_164_312_B",
					Title:       "Physical Safeguards",
					Description: "Physical protection of PHI systems",
					Category:    "Physical",
					Severity:    core.SeverityHigh,
					Checks:      []string{"facility_access_controls", "workstation_use_restrictions", "device_media_controls"},
				},
				{
					ID:          "HIPAA_164_312_C",
					Title:       "Technical Safeguards",
					Description: "Technical measures for PHI protection",
					Category:    "Technical",
					Severity:    core.SeverityCritical,
					Checks:      []string{"access_control_unique_ids", "audit_controls", "integrity_transmission_security"},
				},
			},
		},
	}
}
