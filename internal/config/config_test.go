package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/repomon/internal/config"
)

const fixtureTOML = `basedir = "/home/jozias/projects"

[repos.ar2]
[[repos.ar2.remotes]]
name = "origin"
url = "jozias@jasonozias.com:repos/ar2.git"

[[repos.ar2.branch]]
name = "master"
interval = "1m"
remotes = ["origin"]

[repos.repomon]
[[repos.repomon.remotes]]
name = "origin"
url = "jozias@jasonozias.com:repos/repomon.git"

[[repos.repomon.remotes]]
name = "gh"
url = "git@github.com:rustyhorde/repomon.git"

[[repos.repomon.branch]]
name = "master"
interval = "1m"
remotes = ["origin", "gh"]

[[repos.repomon.branch]]
name = "feature/testing"
interval = "1m"
remotes = ["origin", "gh"]
`

func readFixture() *config.Config {
	cfg, err := config.Read(strings.NewReader(fixtureTOML), config.FormatTOML)
	Expect(err).NotTo(HaveOccurred())
	return cfg
}

func configErrorOf(err error) *config.ConfigError {
	var cfgErr *config.ConfigError
	Expect(errors.As(err, &cfgErr)).To(BeTrue(), "expected *ConfigError, got %v", err)
	return cfgErr
}

var _ = Describe("Config documents", func() {
	It("decodes repositories, remotes and branches", func() {
		cfg := readFixture()
		Expect(cfg.Basedir).To(Equal("/home/jozias/projects"))
		Expect(cfg.RepoNames()).To(Equal([]string{"ar2", "repomon"}))

		repo := cfg.Repos["repomon"]
		Expect(repo.Remotes).To(Equal([]config.Remote{
			{Name: "origin", URL: "jozias@jasonozias.com:repos/repomon.git"},
			{Name: "gh", URL: "git@github.com:rustyhorde/repomon.git"},
		}))
		Expect(repo.Branches).To(HaveLen(2))
		Expect(repo.Branches[1]).To(Equal(config.Branch{Name: "feature/testing", Interval: "1m", Remotes: []string{"origin", "gh"}}))

		remote, ok := repo.Remote("gh")
		Expect(ok).To(BeTrue())
		Expect(remote.URL).To(HavePrefix("git@github.com"))
		_, ok = repo.Branch("develop")
		Expect(ok).To(BeFalse())
	})

	It("round-trips TOML to an equal value and identical bytes", func() {
		cfg := readFixture()
		first, err := config.Marshal(cfg, config.FormatTOML)
		Expect(err).NotTo(HaveOccurred())

		decoded, err := config.Read(strings.NewReader(string(first)), config.FormatTOML)
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded).To(Equal(cfg))

		second, err := config.Marshal(decoded, config.FormatTOML)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(second)).To(Equal(string(first)))
		Expect(strings.Index(string(first), "[repos.ar2]")).To(BeNumerically("<", strings.Index(string(first), "[repos.repomon]")))
	})

	It("round-trips YAML", func() {
		cfg := readFixture()
		data, err := config.Marshal(cfg, config.FormatYAML)
		Expect(err).NotTo(HaveOccurred())

		decoded, err := config.Read(strings.NewReader(string(data)), config.FormatYAML)
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded).To(Equal(cfg))
	})

	It("rejects an empty document", func() {
		_, err := config.Read(strings.NewReader("  \n"), config.FormatTOML)
		Expect(configErrorOf(err).Problems).To(ContainElement("document is empty"))
	})

	It("rejects unknown keys", func() {
		_, err := config.Read(strings.NewReader(fixtureTOML+"\n[repos.ar2.extra]\nfoo = 1\n"), config.FormatTOML)
		Expect(configErrorOf(err).Error()).To(ContainSubstring("unknown key"))
	})

	It("rejects malformed TOML", func() {
		_, err := config.Read(strings.NewReader("basedir = "), config.FormatTOML)
		cfgErr := configErrorOf(err)
		Expect(cfgErr.Unwrap()).NotTo(BeNil())
	})

	It("reports dangling remotes and invalid intervals together", func() {
		doc := strings.Replace(fixtureTOML, `remotes = ["origin"]`, `remotes = ["origin", "upstream"]`, 1)
		doc = strings.Replace(doc, `interval = "1m"`, `interval = "1 minute"`, 1)
		_, err := config.Read(strings.NewReader(doc), config.FormatTOML)
		cfgErr := configErrorOf(err)
		Expect(cfgErr.Problems).To(ContainElement(ContainSubstring(`unknown remote "upstream"`)))
		Expect(cfgErr.Problems).To(ContainElement(ContainSubstring(`invalid interval "1 minute"`)))
	})

	It("rejects duplicate remote and branch names", func() {
		cfg := readFixture()
		repo := cfg.Repos["ar2"]
		repo.Remotes = append(repo.Remotes, config.Remote{Name: "origin", URL: "x"})
		repo.Branches = append(repo.Branches, config.Branch{Name: "master", Interval: "5m"})
		cfg.Repos["ar2"] = repo
		cfgErr := configErrorOf(config.Validate(cfg))
		Expect(cfgErr.Problems).To(ContainElement(ContainSubstring(`duplicate remote "origin"`)))
		Expect(cfgErr.Problems).To(ContainElement(ContainSubstring(`duplicate branch "master"`)))
	})

	It("accepts a branch with no remotes and a zero interval", func() {
		cfg := readFixture()
		repo := cfg.Repos["ar2"]
		repo.Branches = append(repo.Branches, config.Branch{Name: "idle", Interval: "0s"})
		cfg.Repos["ar2"] = repo
		Expect(config.Validate(cfg)).To(Succeed())
	})

	It("saves and loads through the file extension", func() {
		dir := GinkgoT().TempDir()
		cfg := readFixture()
		for _, name := range []string{"repomon.toml", "repomon.yaml"} {
			path := filepath.Join(dir, "nested", name)
			Expect(config.Save(cfg, path)).To(Succeed())
			loaded, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		}
	})

	It("replaces an existing file without leaving temporary files", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, ".repomon.toml")
		Expect(os.WriteFile(path, []byte("stale"), 0o600)).To(Succeed())

		cfg := readFixture()
		Expect(config.Save(cfg, path)).To(Succeed())
		Expect(config.Save(cfg, path)).To(Succeed())

		entries, err := os.ReadDir(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Name()).To(Equal(".repomon.toml"))
		info, err := os.Stat(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o644)))
		loaded, err := config.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(Equal(cfg))
	})

	It("sets the path on load errors", func() {
		path := filepath.Join(GinkgoT().TempDir(), ".repomon.toml")
		Expect(os.WriteFile(path, nil, 0o644)).To(Succeed())
		_, err := config.Load(path)
		Expect(configErrorOf(err).Path).To(Equal(path))
		Expect(err.Error()).To(ContainSubstring(path))
	})
})

var _ = Describe("Config helpers", func() {
	It("resolves repository paths from basedir and overrides", func() {
		cfg := &config.Config{
			Basedir: "/srv/git",
			Repos: map[string]config.Repository{
				"plain":    {},
				"relative": {Path: "nested/relative"},
				"absolute": {Path: "/opt/absolute"},
			},
		}
		Expect(cfg.RepoPath("plain")).To(Equal(filepath.Join("/srv/git", "plain")))
		Expect(cfg.RepoPath("relative")).To(Equal(filepath.Join("/srv/git", "nested", "relative")))
		Expect(cfg.RepoPath("absolute")).To(Equal("/opt/absolute"))
	})

	It("expands a home-relative basedir", func() {
		home, err := os.UserHomeDir()
		Expect(err).NotTo(HaveOccurred())
		cfg := &config.Config{Basedir: "~/code", Repos: map[string]config.Repository{"x": {}}}
		Expect(cfg.RepoPath("x")).To(Equal(filepath.Join(home, "code", "x")))
	})

	It("clones deeply", func() {
		cfg := readFixture()
		clone := cfg.Clone()
		Expect(clone).To(Equal(cfg))
		clone.Repos["ar2"].Branches[0].Remotes[0] = "changed"
		Expect(cfg.Repos["ar2"].Branches[0].Remotes[0]).To(Equal("origin"))
	})

	It("compares branches by value", func() {
		a := config.Branch{Name: "main", Interval: "1m", Remotes: []string{"origin"}}
		b := config.Branch{Name: "main", Interval: "1m", Remotes: []string{"origin"}}
		Expect(a.Equal(b)).To(BeTrue())
		b.Remotes = []string{"origin", "gh"}
		Expect(a.Equal(b)).To(BeFalse())
	})

	It("parses format names", func() {
		f, err := config.ParseFormat("YML")
		Expect(err).NotTo(HaveOccurred())
		Expect(f).To(Equal(config.FormatYAML))
		_, err = config.ParseFormat("json")
		Expect(err).To(HaveOccurred())
		Expect(config.FormatForPath("a/.repomon.toml")).To(Equal(config.FormatTOML))
	})
})

var _ = Describe("Config path resolution", func() {
	It("resolves config path from override directory", func() {
		path, err := config.ConfigPath(filepath.Join("C:", "tmp", "repomon"))
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(HaveSuffix(filepath.Join("repomon", "config.toml")))
	})

	It("resolves config path from override file", func() {
		path, err := config.ConfigPath(filepath.Join("C:", "tmp", "monitor.toml"))
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(HaveSuffix(filepath.Join("tmp", "monitor.toml")))
	})

	It("resolves config path from env", func() {
		GinkgoT().Setenv(config.EnvConfig, filepath.Join("C:", "cfg", "repos.yaml"))
		path, err := config.ConfigPath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(HaveSuffix(filepath.Join("cfg", "repos.yaml")))
	})

	It("resolves init path to local dotfile by default", func() {
		dir := GinkgoT().TempDir()
		path, err := config.InitConfigPath("", dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(filepath.Join(dir, ".repomon.toml")))
	})

	It("resolves runtime config from nearest parent dotfile", func() {
		dir := GinkgoT().TempDir()
		parentPath := filepath.Join(dir, ".repomon.toml")
		Expect(os.WriteFile(parentPath, []byte(fixtureTOML), 0o644)).To(Succeed())

		nested := filepath.Join(dir, "a", "b", "c")
		Expect(os.MkdirAll(nested, 0o755)).To(Succeed())

		path, err := config.ResolveConfigPath("", nested)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(parentPath))
	})

	It("prefers nearer dotfile over farther parent", func() {
		dir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, ".repomon.toml"), []byte(fixtureTOML), 0o644)).To(Succeed())

		childDir := filepath.Join(dir, "a", "b")
		Expect(os.MkdirAll(childDir, 0o755)).To(Succeed())
		childPath := filepath.Join(childDir, ".repomon.toml")
		Expect(os.WriteFile(childPath, []byte(fixtureTOML), 0o644)).To(Succeed())

		path, err := config.ResolveConfigPath("", childDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(childPath))
	})

	It("falls back to global runtime config when local dotfile is absent", func() {
		dir := GinkgoT().TempDir()
		path, err := config.ResolveConfigPath("", dir)
		Expect(err).NotTo(HaveOccurred())

		globalPath, err := config.ConfigPath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(globalPath))
	})
})
