package clientcli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/agdev/storagegate"
)

// Formatter formats results for output.
type Formatter interface {
	FormatUpload(w io.Writer, results []UploadResult) error
	FormatDownload(w io.Writer, result *DownloadResult) error
	FormatGroup(w io.Writer, group storagegate.DynamicObjectGroup) error
	FormatList(w io.Writer, result *ListResult) error
	FormatValidate(w io.Writer, obj storagegate.PendingObject) error
	FormatURL(w io.Writer, url string) error
	FormatError(w io.Writer, err error) error
	FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error
	FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error
}

// NewFormatter returns the appropriate formatter based on flags.
func NewFormatter(jsonOutput, quiet bool) Formatter {
	if jsonOutput {
		return &JSONFormatter{}
	}
	return &HumanFormatter{Quiet: quiet}
}

// HumanFormatter outputs human-readable text.
type HumanFormatter struct {
	Quiet bool
}

// FormatUpload formats upload results as human-readable text.
func (f *HumanFormatter) FormatUpload(w io.Writer, results []UploadResult) error {
	for i := range results {
		r := &results[i]
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "Error: %s - %v\n", r.LocalPath, r.Err)
			continue
		}
		if !f.Quiet {
			_, _ = fmt.Fprintf(w, "Uploaded: %s (%s)\n", r.RelativeKey, formatSize(r.Size))
			_, _ = fmt.Fprintf(w, "  ETag: %s\n", r.ETag)
		}
	}
	return nil
}

// FormatDownload formats download result as human-readable text.
func (f *HumanFormatter) FormatDownload(w io.Writer, result *DownloadResult) error {
	if !f.Quiet {
		if result.LocalPath == "-" {
			_, _ = fmt.Fprintf(w, "Downloaded: %s (%s)\n", result.RelativeKey, formatSize(result.Size))
		} else {
			_, _ = fmt.Fprintf(w, "Downloaded: %s -> %s (%s)\n", result.RelativeKey, result.LocalPath, formatSize(result.Size))
		}
		_, _ = fmt.Fprintf(w, "  ETag: %s\n", result.ETag)
	}
	return nil
}

// FormatGroup formats a group's metadata as human-readable text. In quiet
// mode only the id is printed so it can be captured by scripts.
func (f *HumanFormatter) FormatGroup(w io.Writer, group storagegate.DynamicObjectGroup) error {
	if f.Quiet {
		_, _ = fmt.Fprintln(w, group.ID.String())
		return nil
	}
	state := "open"
	if group.FinalizedAt != nil {
		state = "finalized " + group.FinalizedAt.Format("2006-01-02 15:04:05")
	}
	_, _ = fmt.Fprintf(w, "Group:    %s\n", group.ID)
	_, _ = fmt.Fprintf(w, "Domain:   %s\n", group.Domain)
	_, _ = fmt.Fprintf(w, "Project:  %s\n", group.ProjectID)
	_, _ = fmt.Fprintf(w, "User:     %s\n", group.UserID)
	if group.Category != "" {
		_, _ = fmt.Fprintf(w, "Category: %s\n", group.Category)
	}
	if !group.CreatedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "Created:  %s\n", group.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if group.CommonPrefix != "" {
		_, _ = fmt.Fprintf(w, "Prefix:   %s\n", group.CommonPrefix)
	}
	_, _ = fmt.Fprintf(w, "State:    %s\n", state)
	return nil
}

// FormatList formats a page of group members as human-readable text.
func (f *HumanFormatter) FormatList(w io.Writer, result *ListResult) error {
	if len(result.Items) == 0 {
		_, _ = fmt.Fprintln(w, "No objects found")
		return nil
	}

	maxKeyLen := 3 // "KEY"
	for i := range result.Items {
		if len(result.Items[i].RelativeKey) > maxKeyLen {
			maxKeyLen = len(result.Items[i].RelativeKey)
		}
	}
	if maxKeyLen > 60 {
		maxKeyLen = 60
	}

	_, _ = fmt.Fprintf(w, "%-*s  %-12s  %-19s  %s\n", maxKeyLen, "KEY", "PURPOSE", "CREATED", "VALIDATED")
	_, _ = fmt.Fprintf(w, "%s  %s  %s  %s\n", strings.Repeat("-", maxKeyLen), strings.Repeat("-", 12), strings.Repeat("-", 19), strings.Repeat("-", 19))

	for i := range result.Items {
		item := &result.Items[i]
		key := item.RelativeKey
		if len(key) > maxKeyLen {
			key = key[:maxKeyLen-3] + "..."
		}
		validated := "-"
		if item.UploadValidatedAt != nil {
			validated = item.UploadValidatedAt.Format("2006-01-02 15:04:05")
		}
		_, _ = fmt.Fprintf(w, "%-*s  %-12s  %-19s  %s\n",
			maxKeyLen,
			key,
			item.Purpose,
			item.CreatedAt.Format("2006-01-02 15:04:05"),
			validated,
		)
	}

	_, _ = fmt.Fprintf(w, "\n%d object(s), %d validated\n", len(result.Items), result.ValidatedCount())

	if result.NextCursor != "" {
		_, _ = fmt.Fprintf(w, "Next page: use --cursor %q\n", result.NextCursor)
	}

	return nil
}

// FormatValidate formats a validated member as human-readable text.
func (f *HumanFormatter) FormatValidate(w io.Writer, obj storagegate.PendingObject) error {
	if f.Quiet {
		return nil
	}
	at := "-"
	if obj.UploadValidatedAt != nil {
		at = obj.UploadValidatedAt.Format("2006-01-02 15:04:05")
	}
	_, _ = fmt.Fprintf(w, "Validated: %s (%s)\n", obj.RelativeKey, at)
	return nil
}

// FormatURL prints a presigned URL on its own line.
func (f *HumanFormatter) FormatURL(w io.Writer, url string) error {
	_, _ = fmt.Fprintln(w, url)
	return nil
}

// FormatError formats an error as human-readable text.
func (f *HumanFormatter) FormatError(w io.Writer, err error) error {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	return nil
}

// JSONFormatter outputs JSON.
type JSONFormatter struct{}

// FormatUpload formats upload results as JSON.
func (f *JSONFormatter) FormatUpload(w io.Writer, results []UploadResult) error {
	type jsonResult struct {
		LocalPath   string `json:"local_path"`
		RelativeKey string `json:"relative_key"`
		ContentType string `json:"content_type,omitempty"`
		ETag        string `json:"etag,omitempty"`
		Size        int64  `json:"size_bytes,omitempty"`
		Error       string `json:"error,omitempty"`
	}

	output := make([]jsonResult, len(results))
	for i := range results {
		r := &results[i]
		jr := jsonResult{
			LocalPath:   r.LocalPath,
			RelativeKey: r.RelativeKey,
		}
		if r.Err != nil {
			jr.Error = r.Err.Error()
		} else {
			jr.ContentType = r.ContentType
			jr.ETag = r.ETag
			jr.Size = r.Size
		}
		output[i] = jr
	}

	return writeJSON(w, output)
}

// FormatDownload formats download result as JSON.
func (f *JSONFormatter) FormatDownload(w io.Writer, result *DownloadResult) error {
	return writeJSON(w, result)
}

// FormatGroup formats a group as JSON, using the manifest encoding.
func (f *JSONFormatter) FormatGroup(w io.Writer, group storagegate.DynamicObjectGroup) error {
	return writeJSON(w, group)
}

// FormatList formats list results as JSON.
func (f *JSONFormatter) FormatList(w io.Writer, result *ListResult) error {
	return writeJSON(w, result)
}

// FormatValidate formats a validated member as JSON.
func (f *JSONFormatter) FormatValidate(w io.Writer, obj storagegate.PendingObject) error {
	return writeJSON(w, obj)
}

// FormatURL formats a presigned URL as JSON.
func (f *JSONFormatter) FormatURL(w io.Writer, url string) error {
	return writeJSON(w, struct {
		URL string `json:"url"`
	}{URL: url})
}

// FormatError formats an error as JSON.
func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	output := struct {
		Error string `json:"error"`
	}{
		Error: err.Error(),
	}
	return writeJSON(w, output)
}

// writeJSON writes a value as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/TB)
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatProfileList formats a list of profiles as human-readable text.
func (f *HumanFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error {
	maxNameLen := 4     // "NAME"
	maxEndpointLen := 8 // "ENDPOINT"
	for i := range profiles {
		maxNameLen = max(maxNameLen, len(profiles[i].Name))
		maxEndpointLen = max(maxEndpointLen, len(profiles[i].Endpoint))
	}
	maxNameLen = min(maxNameLen, 20)
	maxEndpointLen = min(maxEndpointLen, 50)

	_, _ = fmt.Fprintf(w, "  %-*s  %-*s  %s\n", maxNameLen, "NAME", maxEndpointLen, "ENDPOINT", "TOKEN")
	_, _ = fmt.Fprintf(w, "  %s  %s  %s\n", strings.Repeat("-", maxNameLen), strings.Repeat("-", maxEndpointLen), strings.Repeat("-", 20))

	for i := range profiles {
		p := &profiles[i]
		marker := " "
		if p.Name == defaultName {
			marker = "*"
		}

		name := p.Name
		if len(name) > maxNameLen {
			name = name[:maxNameLen-3] + "..."
		}

		endpoint := p.Endpoint
		if len(endpoint) > maxEndpointLen {
			endpoint = endpoint[:maxEndpointLen-3] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s %-*s  %-*s  %s\n", marker, maxNameLen, name, maxEndpointLen, endpoint, maskSecret(p.Token, showSecrets))
	}

	return nil
}

// FormatProfileShow formats a single profile as human-readable text.
func (f *HumanFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error {
	_, _ = fmt.Fprintf(w, "Name:     %s", profile.Name)
	if isDefault {
		_, _ = fmt.Fprintf(w, " (default)")
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Endpoint: %s\n", profile.Endpoint)
	_, _ = fmt.Fprintf(w, "Token:    %s\n", maskSecret(profile.Token, showSecrets))
	if profile.Domain != "" {
		_, _ = fmt.Fprintf(w, "Domain:   %s\n", profile.Domain)
	}
	if profile.ProjectID != "" {
		_, _ = fmt.Fprintf(w, "Project:  %s\n", profile.ProjectID)
	}
	return nil
}

// FormatProfileList formats a list of profiles as JSON.
func (f *JSONFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error {
	type jsonProfile struct {
		Name     string `json:"name"`
		Endpoint string `json:"endpoint"`
		Token    string `json:"token,omitempty"`
		Default  bool   `json:"default,omitempty"`
	}

	output := struct {
		Profiles []jsonProfile `json:"profiles"`
	}{
		Profiles: make([]jsonProfile, len(profiles)),
	}

	for i := range profiles {
		p := &profiles[i]
		output.Profiles[i] = jsonProfile{
			Name:     p.Name,
			Endpoint: p.Endpoint,
			Token:    maskSecret(p.Token, showSecrets),
			Default:  p.Name == defaultName,
		}
	}

	return writeJSON(w, output)
}

// FormatProfileShow formats a single profile as JSON.
func (f *JSONFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error {
	output := struct {
		Name      string `json:"name"`
		Endpoint  string `json:"endpoint"`
		Token     string `json:"token"`
		Domain    string `json:"domain,omitempty"`
		ProjectID string `json:"project_id,omitempty"`
		Default   bool   `json:"default"`
	}{
		Name:      profile.Name,
		Endpoint:  profile.Endpoint,
		Token:     maskSecret(profile.Token, showSecrets),
		Domain:    profile.Domain,
		ProjectID: profile.ProjectID,
		Default:   isDefault,
	}

	return writeJSON(w, output)
}

// maskSecret masks a secret string, showing only first 4 and last 4 characters.
// If showSecrets is true, returns the original value.
// If the secret is too short, returns all asterisks.
func maskSecret(secret string, showSecrets bool) string {
	if showSecrets {
		return secret
	}
	if secret == "" {
		return "(not set)"
	}
	if len(secret) <= 8 {
		return "********"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
