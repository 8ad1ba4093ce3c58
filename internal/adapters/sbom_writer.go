package adapters

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/uuid"

	"python-buildpack/internal/ports"
	"python-buildpack/internal/types"
)

const DefaultSBOMNamespace = "https://python-buildpack.dev/spdx"

type SBOMWriterAdapter struct {
	NamespaceBase string
}

func NewSBOMWriterAdapter() SBOMWriterAdapter {
	return SBOMWriterAdapter{NamespaceBase: DefaultSBOMNamespace}
}

func (a SBOMWriterAdapter) namespaceBase() string {
	base := strings.TrimRight(strings.TrimSpace(a.NamespaceBase), "/")
	if base == "" {
		return DefaultSBOMNamespace
	}
	return base
}

// WriteSBOM records the installed dependency set as an SPDX 2.3 JSON
// document. The namespace is derived from the package set, so rebuilding
// the same set yields the same document apart from the creation time.
// createdAt may be RFC3339 or Unix seconds; anything else means now.
func (a SBOMWriterAdapter) WriteSBOM(path string, subject string, createdAt string, packages []types.InstalledPackage) error {
	if strings.TrimSpace(path) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("sbom path is empty")
	}
	if strings.TrimSpace(subject) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("sbom subject is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create sbom directory").
			WithCause(err)
	}
	ordered := append([]types.InstalledPackage(nil), packages...)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Name == ordered[j].Name {
			return ordered[i].Version < ordered[j].Version
		}
		return ordered[i].Name < ordered[j].Name
	})
	type spdxCreationInfo struct {
		Created  string   `json:"created"`
		Creators []string `json:"creators"`
	}
	type spdxExternalRef struct {
		ReferenceCategory string `json:"referenceCategory"`
		ReferenceType     string `json:"referenceType"`
		ReferenceLocator  string `json:"referenceLocator"`
	}
	type spdxPackage struct {
		SPDXID           string            `json:"SPDXID"`
		Name             string            `json:"name"`
		VersionInfo      string            `json:"versionInfo"`
		DownloadLocation string            `json:"downloadLocation"`
		LicenseConcluded string            `json:"licenseConcluded"`
		LicenseDeclared  string            `json:"licenseDeclared"`
		Supplier         string            `json:"supplier"`
		ExternalRefs     []spdxExternalRef `json:"externalRefs"`
	}
	type spdxRelationship struct {
		SpdxElementID      string `json:"spdxElementId"`
		RelationshipType   string `json:"relationshipType"`
		RelatedSpdxElement string `json:"relatedSpdxElement"`
	}
	createdTime := parseTimeFlexible(createdAt)
	if createdTime.IsZero() {
		createdTime = time.Now().UTC()
	}
	created := createdTime.Format(time.RFC3339)
	payload := struct {
		SPDXVersion       string             `json:"spdxVersion"`
		DataLicense       string             `json:"dataLicense"`
		SPDXID            string             `json:"SPDXID"`
		Name              string             `json:"name"`
		DocumentNamespace string             `json:"documentNamespace"`
		CreationInfo      spdxCreationInfo   `json:"creationInfo"`
		Packages          []spdxPackage      `json:"packages"`
		Relationships     []spdxRelationship `json:"relationships"`
		DocumentDescribes []string           `json:"documentDescribes"`
	}{
		SPDXVersion:       "SPDX-2.3",
		DataLicense:       "CC0-1.0",
		SPDXID:            "SPDXRef-DOCUMENT",
		Name:              fmt.Sprintf("python-buildpack dependencies %s", subject),
		DocumentNamespace: fmt.Sprintf("%s/%s-%s", a.namespaceBase(), subject, packageSetID(ordered)),
		CreationInfo: spdxCreationInfo{
			Created:  created,
			Creators: []string{"Tool: python-buildpack"},
		},
		Packages:          []spdxPackage{},
		Relationships:     []spdxRelationship{},
		DocumentDescribes: []string{},
	}
	for _, pkg := range ordered {
		spdxID := spdxPackageID(pkg.Name, pkg.Version)
		payload.Packages = append(payload.Packages, spdxPackage{
			SPDXID:           spdxID,
			Name:             pkg.Name,
			VersionInfo:      pkg.Version,
			DownloadLocation: "NOASSERTION",
			LicenseConcluded: "NOASSERTION",
			LicenseDeclared:  "NOASSERTION",
			Supplier:         "NOASSERTION",
			ExternalRefs: []spdxExternalRef{{
				ReferenceCategory: "PACKAGE-MANAGER",
				ReferenceType:     "purl",
				ReferenceLocator:  fmt.Sprintf("pkg:pypi/%s@%s", pkg.Name, pkg.Version),
			}},
		})
		payload.DocumentDescribes = append(payload.DocumentDescribes, spdxID)
		payload.Relationships = append(payload.Relationships, spdxRelationship{
			SpdxElementID:      "SPDXRef-DOCUMENT",
			RelationshipType:   "DESCRIBES",
			RelatedSpdxElement: spdxID,
		})
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to marshal sbom payload").
			WithCause(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write sbom file").
			WithCause(err)
	}
	return nil
}

func spdxPackageID(name string, version string) string {
	seed := fmt.Sprintf("%s@%s", name, version)
	hash := sha256.Sum256([]byte(seed))
	return "SPDXRef-Package-" + hex.EncodeToString(hash[:8])
}

func packageSetID(packages []types.InstalledPackage) string {
	var builder strings.Builder
	for _, pkg := range packages {
		builder.WriteString(pkg.Name)
		builder.WriteString("@")
		builder.WriteString(pkg.Version)
		builder.WriteString("\n")
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(builder.String())).String()
}

var _ ports.SBOMPort = SBOMWriterAdapter{}
