package tools

// CatalogDeps are the injectable backends for the platform-dependent
// families. Nil fields get safe defaults.
type CatalogDeps struct {
	Automator Automator
	KeyStore  KeyStore
	OCREngine OCREngine
}

// RegisterDefaultCatalog registers every shipped adapter family.
func RegisterDefaultCatalog(r *Registry, env *Env, deps CatalogDeps) {
	if deps.Automator == nil {
		deps.Automator = &SoftwareAutomator{}
	}
	RegisterFileTools(r, env)
	RegisterShellTools(r, env)
	RegisterGUITools(r, env, deps.Automator)
	if deps.KeyStore != nil {
		RegisterRegistryTools(r, env, deps.KeyStore)
	}
	RegisterOCRTools(r, env, deps.OCREngine)
}
