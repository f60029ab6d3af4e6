package vulkan

/**
 * @brief Max number of push constant ranges in a pipeline layout. Vulkan only
 * guarantees 128 bytes of push constants with 4-byte alignment.
 */
const VULKAN_MAX_PUSH_CONSTANT_RANGES = 32

/**
 * @brief Max number of colour attachments written by one subpass.
 */
const VULKAN_MAX_COLOR_ATTACHMENTS = 8

/** @brief Timeout of single use submissions, in nanoseconds. */
const VULKAN_SINGLE_USE_TIMEOUT uint64 = 1_000_000_000
