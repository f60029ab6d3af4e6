package metadata

/**
 * @brief Describes an explicit render pass created by a backend factory.
 * The core only references it by handle.
 */
type RenderPass struct {
	/** @brief The unique render pass identifier. Part of every pipeline key. */
	ID uint32
	/** @brief A readable name, used in logs and traces. */
	Name string
	/** @brief The number of subpasses. Subpass indices must stay below it. */
	SubpassCount uint32
	/** @brief The number of colour attachments written by each subpass. */
	ColorAttachmentCounts []uint8
	/** @brief The backend render pass object (vk.RenderPass for vulkan). */
	InternalData interface{}
}

// ColorAttachmentCount returns the colour attachment count for subpass, or 1
// when the pass does not describe it.
func (rp *RenderPass) ColorAttachmentCount(subpass uint32) uint8 {
	if rp == nil || int(subpass) >= len(rp.ColorAttachmentCounts) {
		return 1
	}
	return rp.ColorAttachmentCounts[subpass]
}

/**
 * @brief A framebuffer bound to one render pass.
 */
type Framebuffer struct {
	ID          uint32
	RenderPass  *RenderPass
	Width       uint32
	Height      uint32
	Attachments []*Texture
	/** @brief The backend framebuffer object (vk.Framebuffer for vulkan). */
	InternalData interface{}
}

/**
 * @brief A clear value for one attachment. Depth/stencil values are used when
 * IsDepthStencil is set, the colour otherwise.
 */
type ClearValue struct {
	Color          [4]float32
	Depth          float32
	Stencil        uint32
	IsDepthStencil bool
}

func ClearColor(r, g, b, a float32) ClearValue {
	return ClearValue{Color: [4]float32{r, g, b, a}}
}

func ClearDepthStencil(depth float32, stencil uint32) ClearValue {
	return ClearValue{Depth: depth, Stencil: stencil, IsDepthStencil: true}
}
