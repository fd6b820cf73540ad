package render

// The four artifact layouts. Bodies are built only from expert sections,
// suggestions and sources; nothing else leaks into the content.
const artifactTemplates = `
{{- define "blog" -}}
# {{.Title}}

{{range .Sections}}## {{.Heading}}

{{.Body}}

{{end -}}
{{- if .Suggestions}}## Where to Go Next

{{range .Suggestions}}- {{.}}
{{end}}
{{end -}}
{{- if .Sources}}## References

{{range .Sources}}- {{.}}
{{end}}
{{- end -}}
{{- end -}}

{{- define "chapter" -}}
# Chapter {{.ChapterNumber}}: {{.Title}}

{{range .Sections}}## {{.Heading}}

{{.Body}}

{{end -}}
## Chapter Review

This chapter examined {{.Topic}} from the perspectives above. The material targets {{.Audience}} at {{.Depth}} depth.

{{if .Sources}}## References

{{range .Sources}}- {{.}}
{{end}}
{{- end -}}
{{- end -}}

{{- define "report" -}}
# {{.Title}}

**Report type:** {{.ReportType}}
**Classification:** {{.Confidentiality}}
**Date:** {{.Date}}

## Executive Summary

This report assesses {{.Topic}} for {{.Audience}}.

{{range .Sections}}## {{.Heading}}

{{.Body}}

{{end -}}
{{- if .Suggestions}}## Recommendations

{{range .Suggestions}}- {{.}}
{{end}}
{{end -}}
{{- if .Sources}}## References

{{range .Sources}}- {{.}}
{{end}}
{{- end -}}
{{- end -}}

{{- define "interactive" -}}
# {{.Title}}

{{range .Sections}}## {{.Heading}}

{{.Body}}

**Discussion prompt:** How does this aspect of {{$.Topic}} apply in your environment?

{{end -}}
{{- if .Sources}}## References

{{range .Sources}}- {{.}}
{{end}}
{{- end -}}
{{- end -}}
`
