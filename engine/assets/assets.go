package assets

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/formats"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/webgpu"
)

var ErrAssetNotFound = errors.New("asset not found")

// AssetManager resolves asset names under a root directory and turns image
// files into textures.
type AssetManager struct {
	root string
}

func NewAssetManager(root string) (*AssetManager, error) {
	fi, err := os.Stat(root)
	if err != nil {
		core.LogError("asset directory %s: %s", root, err)
		return nil, err
	}
	if !fi.IsDir() {
		err := fmt.Errorf("%w: %s is not a directory", core.ErrInvalidArgument, root)
		core.LogError("%s", err)
		return nil, err
	}
	return &AssetManager{root: root}, nil
}

// Path returns the absolute location of name. Names may not leave the root.
func (am *AssetManager) Path(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s escapes the asset root", core.ErrInvalidArgument, name)
	}
	path := filepath.Join(am.root, clean)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrAssetNotFound, name)
		}
		return "", err
	}
	return path, nil
}

// LoadImage decodes a PNG, JPEG, BMP, TIFF or WebP file.
func (am *AssetManager) LoadImage(name string) (image.Image, error) {
	path, err := am.Path(name)
	if err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, kind, err := image.Decode(f)
	if err != nil {
		err = fmt.Errorf("decode %s: %w", name, err)
		core.LogError("%s", err)
		return nil, err
	}
	core.LogDebug("loaded %s image %s (%dx%d)", kind, name, img.Bounds().Dx(), img.Bounds().Dy())
	return img, nil
}

// TextureParams tune the texture LoadTexture creates.
type TextureParams struct {
	FlipY           bool
	GenerateMipMaps bool
	UseSRGB         bool
	SamplingMode    webgpu.SamplingMode
}

// LoadTexture decodes an image asset into a new RGBA texture.
func (am *AssetManager) LoadTexture(e *webgpu.Engine, name string, params TextureParams) (*webgpu.InternalTexture, error) {
	img, err := am.LoadImage(name)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	tex, err := e.CreateTexture(webgpu.TextureOptions{
		Label:           name,
		Width:           uint32(b.Dx()),
		Height:          uint32(b.Dy()),
		Type:            formats.TypeUnsignedByte,
		Format:          formats.FormatRGBA,
		UseSRGB:         params.UseSRGB,
		GenerateMipMaps: params.GenerateMipMaps,
		SamplingMode:    params.SamplingMode,
	})
	if err != nil {
		return nil, err
	}
	if err := e.UpdateTextureFromImage(tex, img, webgpu.UpdateOptions{InvertY: params.FlipY}); err != nil {
		e.ReleaseTexture(tex)
		return nil, err
	}
	return tex, nil
}
